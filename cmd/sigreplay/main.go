package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/sigreplay/internal/app"
	"github.com/newthinker/sigreplay/internal/config"
	"github.com/newthinker/sigreplay/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "sigreplay",
	Short: "sigreplay - replay trading signals against historical quotes",
	Long: `sigreplay turns BUY/SELL decisions on a coarse candle series into trades and
replays them bar by bar against a finer quote series to measure their outcome.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config, or falls back to defaults with a warning.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Warn("no config file specified, using defaults")
		return config.Defaults(), nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger honours --debug over the configured log section.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	opts := logger.Options{Development: cfg.Development, Level: cfg.Level}
	if debug {
		opts.Development = true
		opts.Level = "debug"
	}
	return logger.New(opts)
}

// bootstrap loads the configuration, lets mutate adjust it from flags and builds the app.
func bootstrap(ctx context.Context, mutate func(*config.Config)) (*app.App, *zap.Logger, error) {
	boot, err := newLogger(config.LogConfig{Level: "info"})
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(boot)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}
