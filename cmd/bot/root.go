package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ohmynofan/gamemale-checkin-bot/internal/app"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/config"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/gamemale-checkin-bot/internal/platform/ui"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func newRootCmd() *cobra.Command {
	var (
		envFile  string
		logLevel string
	)

	root := &cobra.Command{
		Use:           "gamemale-bot",
		Short:         "Log in to GameMale and run the daily check-in and lottery.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(envFile)
			if err != nil {
				return fmt.Errorf("%w: %w", app.ErrInvalidConfig, err)
			}
			if logLevel != "" {
				cfg.Logger.Level = logLevel
			}
			if err := logger.Init(cfg.Logger); err != nil {
				return fmt.Errorf("%w: %w", app.ErrInvalidConfig, err)
			}
			defer logger.Close()
			logger.L().Info("starting", zap.String("version", Version))

			ui.StartUISystem()
			summary, runErr := app.New(cfg).Run(cmd.Context())
			ui.StopUISystem()

			if summary != nil {
				if err := ui.PrintSummary(summary.Results); err != nil {
					logger.L().Warn("failed to render summary", zap.Error(err))
				}
			}
			return runErr
		},
	}

	root.PersistentFlags().StringVar(&envFile, "env-file", "", "path to a .env file (default ./.env)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}
