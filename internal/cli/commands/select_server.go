package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retinoscan/retinoscan/internal/cli/config"
	"github.com/retinoscan/retinoscan/internal/cli/serverselect"
	"github.com/retinoscan/retinoscan/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [host-or-alias]",
		Short: "Select the server to use for commands",
		Long: `Select the server to use for commands.

If no param is provided, an interactive prompt will be shown.

Examples:
  $ retinoscan select-server                    # Interactive selection
  $ retinoscan select-server clinic.example.org # Select by host
  $ retinoscan select-server clinic             # Select by alias`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hostOrAlias string
			if len(args) > 0 {
				hostOrAlias = args[0]
			}
			return runSelectServer(hostOrAlias)
		},
	}

	return cmd
}

func runSelectServer(hostOrAlias string) error {
	// Load project config
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'retinoscan init' to create a configuration file", err)
	}

	var server *config.Server

	if hostOrAlias != "" {
		// User provided a host or alias, find it
		server, err = serverselect.GetServerByHostOrAlias(cfg, hostOrAlias)
		if err != nil {
			return err
		}
	} else {
		// Show interactive selection
		server, err = serverselect.PromptServerSelection(cfg)
		if err != nil {
			return err
		}
	}

	// Save the selected server
	if err := userconfig.SetSelectedServer(server.Host); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	fmt.Printf("Selected server: %s (%s)\n", server.Alias, server.Host)
	return nil
}
