package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	promadapter "github.com/codewandler/cartes-go/adapters/prometheus"
	"github.com/codewandler/cartes-go/core/es"
	"github.com/codewandler/cartes-go/domain/cart"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Backend    string
	LogLevel   string
	Format     string // "json" | "text"
	Metrics    bool
}

var validFormats = []string{"text", "json"}

// NewRootCommand creates the cartctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cartctl",
		Short:         "Event sourced shopping carts",
		Long:          "Open, fill, confirm and inspect shopping carts stored as event streams.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "text" && opts.Format != "json" {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path of a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "event store backend (memory|sqlite|nats|redis)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "print collected metrics to stderr on exit")

	cmd.AddCommand(
		newOpenCommand(opts),
		newAddCommand(opts),
		newRemoveCommand(opts),
		newConfirmCommand(opts),
		newCancelCommand(opts),
		newShowCommand(opts),
		newEventsCommand(opts),
	)

	return cmd
}

// app is the wiring shared by all commands of one invocation.
type app struct {
	log   *slog.Logger
	store es.EventStore
	svc   *cart.Service
	reg   *prometheus.Registry
	out   *output
}

// resolveConfig loads the config file and environment, then applies flags.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (Config, error) {
	cfg, err := LoadConfig(opts.ConfigPath, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = opts.Backend
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, cfg.Validate()
}

// withApp wires an app for cmd, runs fn and releases the store.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app) error) (err error) {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}
	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Backend, err)
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			log.Warn("failed to close store", slog.Any("error", cerr))
		}
	}()

	reg := prometheus.NewRegistry()
	m := promadapter.NewESMetrics(reg)
	store = es.InstrumentStore(store, log, m)

	svc := cart.NewService(
		cart.NewRepository(store, es.WithLog(log), es.WithMetrics(m)),
		cart.WithLog(log),
		cart.WithMetrics(m),
		cart.WithConflictRetries(cfg.Retries),
	)
	defer svc.Close()

	a := &app{
		log:   log,
		store: store,
		svc:   svc,
		reg:   reg,
		out:   &output{format: opts.Format, w: cmd.OutOrStdout()},
	}

	err = fn(ctx, a)

	if opts.Metrics {
		if merr := printMetrics(cmd.ErrOrStderr(), reg); merr != nil {
			log.Warn("failed to gather metrics", slog.Any("error", merr))
		}
	}
	return err
}
