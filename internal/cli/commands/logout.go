package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(serverAlias)
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runLogout(serverAlias string) error {
	server, err := getSelectedServer(serverAlias)
	if err != nil {
		return err
	}

	bootstrapper, _ := newBootstrapper(server)

	if err := bootstrapper.Logout(); err != nil {
		return fmt.Errorf("failed to remove stored credentials: %w", err)
	}

	fmt.Printf("✓ Logged out from %s (%s)\n", server.Alias, server.Host)
	return nil
}
