package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/retinoscan/retinoscan/internal/cli/config"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <host>",
		Short: "Register a RetinoScan server and open its setup page",
		Args:  cobra.ExactArgs(1),
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	host := args[0]

	currentDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	configPath := filepath.Join(currentDir, config.ConfigFileName)

	var cfg *config.Config
	isNewConfig := false

	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		// Load existing config
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load existing config: %w", err)
		}
		fmt.Printf("Found existing %s\n", config.ConfigFileName)
	} else {
		// Create new config
		cfg = &config.Config{
			Servers: []config.Server{},
		}
		isNewConfig = true
	}

	// Check if server already exists
	serverExists := false
	for _, server := range cfg.Servers {
		if server.Host == host {
			serverExists = true
			break
		}
	}

	if serverExists {
		fmt.Printf("Server %s already exists in %s\n", host, config.ConfigFileName)
	} else {
		// Add new server
		alias := host
		if len(cfg.Servers) == 0 {
			alias = "clinic"
		} else {
			alias = fmt.Sprintf("server-%d", len(cfg.Servers)+1)
		}

		cfg.Servers = append(cfg.Servers, config.Server{
			Host:  host,
			Alias: alias,
		})

		// Save to file
		if err := config.Save(configPath, cfg); err != nil {
			return err
		}

		if isNewConfig {
			fmt.Printf("✓ Created ./%s with server %s (%s)\n", config.ConfigFileName, host, alias)
		} else {
			fmt.Printf("✓ Added server %s (%s) to ./%s\n", host, alias, config.ConfigFileName)
		}
	}

	// Open browser to setup page
	setupURL := fmt.Sprintf("https://%s/setup", host)
	fmt.Printf("\nOpening setup page at %s...\n", setupURL)

	if err := openBrowser(setupURL); err != nil {
		fmt.Printf("⚠ Could not open browser automatically: %v\n", err)
		fmt.Printf("Please visit: %s\n", setupURL)
	}

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Complete the setup wizard in your browser")
	fmt.Println("  2. Run 'retinoscan login' to authenticate")

	return nil
}
