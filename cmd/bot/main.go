package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ykvlv/taskmate-bot/internal/app"
	"github.com/ykvlv/taskmate-bot/internal/config"
	"github.com/ykvlv/taskmate-bot/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads config and builds the logger shared by all subcommands.
func setup() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, fmt.Errorf("config error: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return cfg, nil, fmt.Errorf("logger init error: %w", err)
	}
	return cfg, log, nil
}

func newRootCmd() *cobra.Command {
	serve := newServeCmd()
	root := &cobra.Command{
		Use:          "bot",
		Short:        "Telegram task and reminder bot",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.AddCommand(serve, newSweepCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll Telegram, run the scheduler and serve HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			// Ensure logger flush; ignore sync error (common on some platforms).
			defer func() { _ = log.Sync() }()

			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				log.Error("app init failed", zap.Error(err))
				return err
			}
			if err := application.Run(cmd.Context()); err != nil {
				log.Error("app run failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "sweep reminders|digest",
		Short:     "Run one reminder or digest sweep and exit",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{app.SweepReminders, app.SweepDigest},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			application, err := app.New(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer application.Close()

			st, err := application.Sweep(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			log.Info("sweep finished", zap.String("kind", args[0]), zap.Stringer("stats", st))
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), st.String())
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			repo, err := app.OpenStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			log.Info("migrations applied", zap.String("driver", cfg.DBDriver))
			return repo.Close()
		},
	}
}
