package commands

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/retinoscan/retinoscan/internal/cli/config"
	"github.com/retinoscan/retinoscan/internal/cli/serverselect"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a RetinoScan server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set RETINOSCAN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set RETINOSCAN_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(email, password string) error {
	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("RETINOSCAN_EMAIL")
	}
	if password == "" {
		password = os.Getenv("RETINOSCAN_PASSWORD")
	}

	// Validate email
	if email == "" {
		return fmt.Errorf("email is required (use --email flag or RETINOSCAN_EMAIL env var)")
	}

	// Load config
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return fmt.Errorf("failed to load config: %w\nRun 'retinoscan init' to create a configuration file", err)
	}

	// Resolve which server to use (respects selected server from select-server command)
	server, err := serverselect.ResolveServer(cfg, "")
	if err != nil {
		return err
	}

	if server.Host == "" {
		return fmt.Errorf("server host is empty. Please edit %s and add a valid host", config.ConfigFileName)
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		// Check if stdin is a terminal (not piped)
		if term.IsTerminal(int(syscall.Stdin)) {
			fmt.Print("Password: ")
			bytePassword, err := term.ReadPassword(int(syscall.Stdin))
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = string(bytePassword)
			fmt.Println() // New line after password input
		} else {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or RETINOSCAN_PASSWORD env var)")
		}
	}

	bootstrapper, apiClient := newBootstrapper(server)

	// Attempt login
	fmt.Printf("Logging in to %s (%s)...\n", server.Alias, server.Host)

	loginResp, err := apiClient.Login(email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	// Persist both tokens and mark the session authenticated
	if err := bootstrapper.Login(&loginResp.User, loginResp.Access, loginResp.Refresh); err != nil {
		return fmt.Errorf("failed to save authentication tokens: %w", err)
	}

	fmt.Println("✓ Login successful!")
	fmt.Printf("  User: %s %s (%s)\n", loginResp.User.FirstName, loginResp.User.LastName, loginResp.User.Email)
	fmt.Printf("  Role: %s\n", loginResp.User.Role)

	return nil
}
