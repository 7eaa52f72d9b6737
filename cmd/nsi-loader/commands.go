package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/nsi-loader/internal/server"
	"github.com/Sternrassler/nsi-loader/pkg/config"
	"github.com/Sternrassler/nsi-loader/pkg/logging"
	"github.com/Sternrassler/nsi-loader/pkg/store"
	"github.com/Sternrassler/nsi-loader/pkg/syncstate"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:          "nsi-loader",
		Short:        "Load NSI registry dictionaries into PostgreSQL",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Path to a config file (yaml, toml or json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newSyncCmd(opts),
		newFetchCmd(opts),
		newSaveCmd(opts),
		newMigrateCmd(opts),
	)

	return rootCmd
}

// load reads the configuration and sets up logging.
func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}

	if o.logLevel != "" {
		if err := logging.ValidateLevel(logging.LogLevel(o.logLevel)); err != nil {
			return config.Config{}, err
		}
		cfg.LogLevel = o.logLevel
	}

	logging.Setup(cfg.Logging())
	logger := logging.NewLogger(logging.ComponentCLI)
	logger.Debug().
		Str("config_file", o.configFile).
		Strs("dictionaries", cfg.Dictionaries).
		Int("page_size", cfg.PageSize).
		Msg("Configuration loaded")

	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the loader over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			serverOpts := []server.Option{
				server.WithReadinessCheck("database", a.writer.Ping),
			}
			if a.reports != nil {
				serverOpts = append(serverOpts,
					server.WithReadinessCheck("redis", a.reports.Ping),
					server.WithReports(a.reports, func(err error) bool {
						return errors.Is(err, syncstate.ErrNoReport)
					}),
				)
			}

			return server.New(a.service, serverOpts...).Run(ctx, cfg.Addr())
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var identifiers []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Download and save every configured dictionary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(identifiers) == 0 {
				identifiers = a.service.Identifiers()
			}
			report := a.service.SaveAll(cmd.Context(), identifiers)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if n := report.Failed(); n > 0 {
				return fmt.Errorf("%d of %d dictionaries failed: %w", n, len(report.Summary), report.Err())
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&identifiers, "id", nil, "Dictionary identifier to sync (repeatable, defaults to DICTIONARIES)")

	return cmd
}

func newFetchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <identifier>",
		Short: "Download a dictionary without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.service.FetchOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d records\n", result.Identifier, result.Len())
			return nil
		},
	}
}

func newSaveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "save <identifier>",
		Short: "Download a dictionary and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()

			count, err := a.service.SaveOne(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: saved %d records\n", args[0], count)
			return nil
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			db, err := store.Connect(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.Migrate(db); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
