package commands

import (
	"fmt"

	"github.com/retinoscan/retinoscan/internal/cli/auth"
	"github.com/retinoscan/retinoscan/internal/cli/client"
	"github.com/retinoscan/retinoscan/internal/cli/config"
	"github.com/retinoscan/retinoscan/internal/cli/serverselect"
	"github.com/retinoscan/retinoscan/internal/session"
)

// getSelectedServer loads the config and returns the selected server.
// This is common logic used by most commands.
// If you need the config object itself, call config.LoadFromCurrentDir() separately.
func getSelectedServer(serverAlias string) (*config.Server, error) {
	// Load config
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'retinoscan init' to create a configuration file", err)
	}

	// Resolve which server to use
	server, err := serverselect.ResolveServer(cfg, serverAlias)
	if err != nil {
		return nil, err
	}

	if server.Host == "" {
		return nil, fmt.Errorf("server host is empty. Please edit %s and add a valid host", config.ConfigFileName)
	}

	return server, nil
}

// newBootstrapper wires a session bootstrapper for the given server: the OS
// keychain holds the tokens, the API client resolves them into an identity.
func newBootstrapper(server *config.Server) (*session.Bootstrapper, *client.Client) {
	apiClient := client.New(server.Host)
	store := session.NewStore()
	tokens := auth.NewKeyring(server.Host)
	return session.NewBootstrapper(store, tokens, apiClient), apiClient
}
