package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/internal/platform"
	"github.com/aretw0/cosmarium/pkg/app"
)

var (
	verbose    bool
	configPath string
	stateDir   string
)

var rootCmd = &cobra.Command{
	Use:   "cosmarium",
	Short: "Headless core of the Cosmarium writing application",
	Long: `Cosmarium manages writing projects: documents, plugins, layouts and
sessions. This command drives the core without a user interface.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default is the user config directory)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "Directory for session and recent-projects state")
}

func resolvedConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return platform.DefaultDirs().ConfigFile()
}

// openApp initializes an application honoring the global flags. The
// caller must shut it down.
func openApp(ctx context.Context) (*app.Application, error) {
	opts := []app.Option{
		app.WithLogger(slog.Default()),
		app.WithConfigPath(resolvedConfigPath()),
		app.WithFileWatch(false),
	}
	if stateDir != "" {
		opts = append(opts,
			app.WithStateDir(stateDir),
			app.WithDataDir(stateDir),
			app.WithLayoutDir(filepath.Join(stateDir, "layouts")),
		)
	}
	a := app.New(opts...)
	if err := a.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to start cosmarium: %w", err)
	}
	return a, nil
}

func shutdown(ctx context.Context, a *app.Application) {
	if err := a.Shutdown(ctx); err != nil {
		slog.Warn("shutdown reported errors", "error", err)
	}
}
