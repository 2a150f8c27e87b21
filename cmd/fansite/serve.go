package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"fansite/internal/ics"
	appLog "fansite/internal/log"
	"fansite/internal/metrics"
	"fansite/internal/store"
	"fansite/internal/web"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the periodic feed import",
		Long: `Start the HTTP API and the periodic feed import.

Feeds are imported once at startup and then on the "refresh" cron spec of
the config file. SIGINT/SIGTERM shut the server down gracefully.

Examples:
  fansite serve --config /etc/fansite/config.yaml
  fansite serve --listen 0.0.0.0:8080 --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, listen string) error {
	cfg, loc, err := opts.loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if listen != "" {
		cfg.Listen = listen
	}

	metrics.Init(Version)
	appLog.Info("fansite starting", "version", Version)
	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"database", cfg.Database,
		"refresh", cfg.RefreshCron,
		"fetch_timeout_seconds", cfg.FetchTimeoutSeconds,
		"cache_ttl_seconds", cfg.CacheTTLSeconds,
		"feed_count", len(cfg.Feeds),
		"basic_auth", cfg.BasicAuth != nil,
	)

	db, err := store.Open(ctx, cfg.Database, store.WithLocation(loc))
	if err != nil {
		return err
	}
	defer db.Close()

	srv := web.NewServer(web.Options{Config: cfg, Store: db, Location: loc})

	if len(cfg.Feeds) > 0 {
		im := newImporter(cfg, db, loc)
		im.OnChange = srv.InvalidateCache

		stop, err := startImportSchedule(ctx, cfg.RefreshCron, im)
		if err != nil {
			return err
		}
		defer stop()
	} else {
		appLog.Info("no feeds configured; import schedule disabled")
	}

	err = srv.ListenAndServe(ctx)
	appLog.Info("fansite exiting")
	return err
}

// startImportSchedule runs im once now and then on spec. Runs never
// overlap. The returned func stops the schedule and waits for a running
// import, the startup one included.
func startImportSchedule(ctx context.Context, spec string, im *ics.Importer) (func(), error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh %q: %w", spec, err)
	}

	logger := cronLogger{}
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).
		Then(cron.FuncJob(func() { runImport(ctx, im) }))

	c := cron.New(cron.WithLocation(im.Location), cron.WithLogger(logger))
	c.Schedule(sched, job)
	c.Start()
	appLog.Info("feed import scheduled", "refresh", spec, "feeds", len(im.Feeds))

	var startup sync.WaitGroup
	startup.Add(1)
	go func() {
		defer startup.Done()
		job.Run()
	}()

	return func() {
		<-c.Stop().Done()
		startup.Wait()
	}, nil
}

func runImport(ctx context.Context, im *ics.Importer) {
	report, err := im.Run(ctx)
	if errors.Is(err, ics.ErrAllFeedsFailed) {
		appLog.Error("feed import: every feed failed", err, "feeds", len(report.Feeds))
		return
	}
	if err != nil {
		appLog.Error("feed import failed", err)
	}
}

// cronLogger routes cron's own logging into the app logger. cron reports
// every wake-up at info level, so that goes to debug.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
