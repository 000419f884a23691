package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/retinoscan/retinoscan/internal/cli/auth"
	"github.com/retinoscan/retinoscan/internal/session"
)

// NewPatientsCmd creates the patients command
func NewPatientsCmd() *cobra.Command {
	var serverAlias string

	cmd := &cobra.Command{
		Use:     "patients",
		Aliases: []string{"ls"},
		Short:   "List patients on the selected server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPatients(serverAlias)
		},
	}

	cmd.Flags().StringVar(&serverAlias, "server", "", "Server alias (uses selected server if not specified)")

	return cmd
}

func runPatients(serverAlias string) error {
	server, err := getSelectedServer(serverAlias)
	if err != nil {
		return err
	}

	bootstrapper, apiClient := newBootstrapper(server)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snap := bootstrapper.Bootstrap(ctx)
	if !snap.Authenticated() {
		return fmt.Errorf("not authenticated. Please run 'retinoscan login' first")
	}

	access, err := auth.NewKeyring(server.Host).LoadToken(session.KeyAccess)
	if err != nil {
		return err
	}

	patients, err := apiClient.ListPatients(access)
	if err != nil {
		return err
	}

	if len(patients) == 0 {
		fmt.Println("No patients found.")
		return nil
	}

	// Display patients in a table
	fmt.Printf("Patients on %s (%s):\n\n", server.Alias, server.Host)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tDOCUMENT\tNAME\tDIABETES\tCREATED AT")
	fmt.Fprintln(w, "──────\t────────\t────\t────────\t──────────")

	for _, p := range patients {
		fmt.Fprintf(w, "%s\t%s\t%s %s\t%s\t%s\n",
			p.RecordNumber,
			p.DocumentID,
			p.FirstNames,
			p.LastNames,
			p.DiabetesType,
			p.CreatedAt,
		)
	}

	w.Flush()

	return nil
}
