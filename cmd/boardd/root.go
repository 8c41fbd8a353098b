package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"familyboard/internal/config"
	"familyboard/internal/logging"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var bindFlag string

	rootCmd := &cobra.Command{
		Use:           "boardd",
		Short:         "Family order workflow board server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configFlag, bindFlag)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return runServer(ctx, cfg)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.Flags().StringVar(&bindFlag, "bind", "", "Override paths.api_bind")
	rootCmd.AddCommand(newCheckCommand(&configFlag))
	return rootCmd
}

func loadServerConfig(path, bind string) (*config.Config, error) {
	cfg, _, _, err := config.Load(strings.TrimSpace(path))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if trimmed := strings.TrimSpace(bind); trimmed != "" {
		cfg.Paths.APIBind = trimmed
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return cfg, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	d, cleanup, err := buildDaemon(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := d.Run(ctx); err != nil {
		logger.Error("board daemon failed", logging.Error(err))
		return err
	}
	return nil
}
