package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/yourname/meilikit/internal/config"
	"github.com/yourname/meilikit/pkg/meili"
)

// app carries the state shared by every command.
type app struct {
	configFile string
	url        string
	apiKey     string
	logLevel   string
	output     string

	cfg    *config.Config
	client *meili.Client
	logger zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "meilictl",
		Short:         "Manage a MeiliSearch server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.client != nil {
				a.client.Close()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: meilikit.yaml in ./config, . or $HOME/.meilikit)")
	flags.StringVar(&a.url, "url", "", "MeiliSearch URL")
	flags.StringVar(&a.apiKey, "api-key", "", "MeiliSearch API key")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	flags.StringVarP(&a.output, "output", "o", "json", "output format (json, yaml)")

	root.AddCommand(
		a.newHealthCmd(),
		a.newVersionCmd(),
		a.newStatsCmd(),
		a.newDumpCmd(),
		a.newSearchCmd(),
		a.newIndexCmd(),
		a.newDocumentsCmd(),
		a.newSettingsCmd(),
		a.newTaskCmd(),
		a.newKeyCmd(),
		a.newTokenCmd(),
	)

	return root
}

// setup loads the configuration, applies flag overrides and creates the client.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configFile)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("url") {
		cfg.Meilisearch.URL = a.url
	}
	if cmd.Flags().Changed("api-key") {
		cfg.Meilisearch.APIKey = a.apiKey
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if a.output != "json" && a.output != "yaml" {
		return fmt.Errorf("unsupported output format %q", a.output)
	}

	a.logger = zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).
		Level(logLevel(cfg.Logging.Level)).
		With().
		Timestamp().
		Str("component", "meilictl").
		Logger()

	client, err := meili.NewClient(cfg.Meilisearch.URL,
		meili.WithAPIKey(cfg.Meilisearch.APIKey),
		meili.WithTimeout(cfg.GetTimeout()),
		meili.WithLogger(&a.logger),
		meili.WithUserAgent("meilictl/"+version),
	)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.client = client

	a.logger.Debug().
		Str("url", cfg.Meilisearch.URL).
		Str("command", cmd.CommandPath()).
		Msg("Configuration loaded")
	return nil
}

// logLevel maps a configured level name to a zerolog level.
func logLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
