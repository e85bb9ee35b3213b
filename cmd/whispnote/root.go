package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/loqalabs/whispnote/internal/app"
	"github.com/loqalabs/whispnote/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "whispnote",
	Short: "Dictate notes and keep them tagged and searchable",
	Long: `WhispNote turns speech into notes. Final recognition results build up a
transcript; stopping a recording saves it as a note, with #hashtags
extracted as tags.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
}

func loadConfig() (config.Config, error) {
	_ = godotenv.Load()
	return config.Load(configPath)
}

func newLogger(cfg config.Config) *slog.Logger {
	level := cfg.LogLevel()
	if verbose {
		level = slog.LevelDebug
	} else if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openApp wires the application from config and starts its event loop.
func openApp(ctx context.Context) (*app.App, config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, cfg, err
	}
	a, err := app.New(ctx, cfg, newLogger(cfg))
	if err != nil {
		return nil, cfg, err
	}
	a.Start(ctx)
	return a, cfg, nil
}
