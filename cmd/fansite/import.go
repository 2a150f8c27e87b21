package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"fansite/internal/store"
)

func newImportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import every configured ICS feed once",
		Long: `Import every configured ICS feed once and exit.

The exit status is non-zero only when every feed failed; single feed
failures are reported and the others still import.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, loc, err := opts.loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(cfg.Feeds) == 0 {
				fmt.Fprintln(out, "no feeds configured")
				return nil
			}

			db, err := store.Open(ctx, cfg.Database, store.WithLocation(loc))
			if err != nil {
				return err
			}
			defer db.Close()

			report, runErr := newImporter(cfg, db, loc).Run(ctx)
			for _, f := range report.Feeds {
				switch {
				case f.Err != nil:
					fmt.Fprintf(out, "%-20s error: %v\n", f.ID, f.Err)
				case f.NotModified:
					fmt.Fprintf(out, "%-20s not modified, %d events, %d pruned\n", f.ID, f.Events, f.Pruned)
				default:
					fmt.Fprintf(out, "%-20s %d events, %d skipped, %d pruned\n", f.ID, f.Events, f.Skipped, f.Pruned)
				}
			}
			return runErr
		},
	}
}
