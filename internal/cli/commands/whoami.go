package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity behind the stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(serverAlias)
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runWhoami(serverAlias string) error {
	server, err := getSelectedServer(serverAlias)
	if err != nil {
		return err
	}

	bootstrapper, _ := newBootstrapper(server)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap := bootstrapper.Bootstrap(ctx)
	if !snap.Authenticated() {
		fmt.Printf("Not signed in to %s (%s). Run 'retinoscan login' first.\n", server.Alias, server.Host)
		return nil
	}

	user := snap.User
	fmt.Printf("Signed in to %s (%s)\n", server.Alias, server.Host)
	fmt.Printf("  User:  %s %s\n", user.FirstName, user.LastName)
	fmt.Printf("  Email: %s\n", user.Email)
	fmt.Printf("  Role:  %s\n", user.Role)

	return nil
}
