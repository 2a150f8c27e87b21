package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fansite/internal/ics"
	"fansite/internal/schedule"
	"fansite/internal/store"
)

type exportOptions struct {
	from     string
	to       string
	category string
	out      string
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	eo := &exportOptions{}
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored schedules as an iCalendar file",
		Long: `Write the stored schedules overlapping [--from, --to] as an iCalendar
file. --from defaults to today and --to to 30 days later, both in the
site zone.

Examples:
  fansite export --out schedules.ics
  fansite export --from 2024-01-01 --to 2024-03-31 --category stage`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, eo)
		},
	}
	cmd.Flags().StringVar(&eo.from, "from", "", "first date (YYYY-MM-DD), default today")
	cmd.Flags().StringVar(&eo.to, "to", "", "last date (YYYY-MM-DD), default from + 30 days")
	cmd.Flags().StringVar(&eo.category, "category", "all", "category to export")
	cmd.Flags().StringVar(&eo.out, "out", "-", `output file, "-" for stdout`)
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions, eo *exportOptions) error {
	ctx := cmd.Context()
	cfg, loc, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	category, err := schedule.ParseCategory(eo.category)
	if err != nil {
		return err
	}
	now := time.Now()
	from := now.In(loc)
	if eo.from != "" {
		if from, err = schedule.ParseDate(eo.from, loc); err != nil {
			return fmt.Errorf("--from: %w", err)
		}
	}
	to := from.AddDate(0, 0, 30)
	if eo.to != "" {
		if to, err = schedule.ParseDate(eo.to, loc); err != nil {
			return fmt.Errorf("--to: %w", err)
		}
	}
	if to.Before(from) {
		return fmt.Errorf("--to %s precedes --from %s", eo.to, from.Format(time.DateOnly))
	}

	db, err := store.Open(ctx, cfg.Database, store.WithLocation(loc))
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := db.ListSchedules(ctx, store.FindSchedule{
		From: from.Format(time.DateOnly),
		To:   to.Format(time.DateOnly),
	})
	if err != nil {
		return err
	}
	events = schedule.Filter(events, category)

	res := ics.Export(events, schedule.NewNormalizer(loc), now)
	if err := writeOutput(cmd.OutOrStdout(), eo.out, res.Serialize()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "exported %d events (%d skipped)\n", res.Exported, res.Skipped)
	return nil
}

func writeOutput(stdout io.Writer, path, body string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(stdout, body)
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
