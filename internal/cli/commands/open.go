package commands

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/retinoscan/retinoscan/internal/gate"
)

// NewOpenCmd creates the open command
func NewOpenCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open the web dashboard for your role in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOpen(serverAlias)
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runOpen(serverAlias string) error {
	// Get selected server
	server, err := getSelectedServer(serverAlias)
	if err != nil {
		return err
	}

	bootstrapper, _ := newBootstrapper(server)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap := bootstrapper.Bootstrap(ctx)

	// The redirector picks the landing route for the resolved session: one
	// dashboard per role, the login page for everyone else.
	redirector := gate.NewRedirector()
	decision := redirector.Observe(snap)

	route := gate.RouteLogin
	if decision.Action == gate.ActionRedirect {
		route = decision.Target
	}

	dashboardURL := fmt.Sprintf("https://%s%s", server.Host, route)

	fmt.Printf("Opening dashboard for %s (%s)...\n", server.Alias, server.Host)
	fmt.Printf("URL: %s\n", dashboardURL)

	// Open browser based on OS
	if err := openBrowser(dashboardURL); err != nil {
		return fmt.Errorf("failed to open browser: %w\nPlease visit: %s", err, dashboardURL)
	}

	return nil
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
