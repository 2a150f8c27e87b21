package main

import (
	"time"

	"github.com/spf13/cobra"

	"fansite/internal/config"
	"fansite/internal/ics"
	appLog "fansite/internal/log"
	"fansite/internal/model"
)

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	serveCmd := newServeCommand(opts)
	root := &cobra.Command{
		Use:   "fansite",
		Short: "Schedule site backend for a voice actor fan site",
		Long: `fansite serves the schedule, works and birthday API of the fan site,
imports subscribed ICS feeds into its SQLite store and exports schedules
as iCalendar files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// No subcommand means serve.
		RunE: serveCmd.RunE,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "path to config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console); overrides config")
	// serve flags are also accepted without the subcommand.
	root.Flags().AddFlagSet(serveCmd.Flags())

	root.AddCommand(serveCmd)
	root.AddCommand(newImportCommand(opts))
	root.AddCommand(newExportCommand(opts))
	root.AddCommand(newVersionCommand())
	return root
}

// loadConfig loads the config file, applies flag overrides and initializes
// logging. The returned location is the site zone.
func (o *rootOptions) loadConfig() (*config.Config, *time.Location, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	appLog.Init(appLog.Level(cfg.LogLevel), cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		appLog.Warn("timezone unavailable; using fixed offset",
			"timezone", cfg.Timezone, "offset_hours", cfg.UTCOffsetHours, "error", err.Error())
	}
	return cfg, loc, nil
}

func newImporter(cfg *config.Config, st ics.Store, loc *time.Location) *ics.Importer {
	feeds := make([]ics.FeedSource, 0, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		feeds = append(feeds, ics.FeedSource{
			ID:       f.ID,
			Name:     f.Name,
			URL:      f.URL,
			Category: model.Category(f.Category),
		})
	}
	return &ics.Importer{
		Fetcher:  ics.NewFetcher(cfg.CacheDir, cfg.FetchTimeout()),
		Store:    st,
		Feeds:    feeds,
		Location: loc,
	}
}
