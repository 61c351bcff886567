package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/spf13/cobra"

	"github.com/aretw0/cosmarium/pkg/app"
	"github.com/aretw0/cosmarium/pkg/core"
)

var (
	runFrames  uint64
	runTick    time.Duration
	runProject string
	runEvents  bool
)

// shutdownTimeout bounds the final save after the frame loop stops.
const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the headless frame loop",
	Long: `Initialize the application and drive Update at a fixed tick until the
frame budget is spent or an interrupt arrives, then shut down cleanly.
Zero frames runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTick <= 0 {
			return fmt.Errorf("--tick must be positive, got %s", runTick)
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		if runEvents {
			stopEvents := logEvents(ctx, a)
			defer stopEvents()
		}
		if runProject != "" {
			if err := a.OpenProject(ctx, runProject); err != nil {
				shutdown(context.WithoutCancel(ctx), a)
				return fmt.Errorf("failed to open project: %w", err)
			}
		}

		ticker := time.NewTicker(runTick)
		defer ticker.Stop()
		start := time.Now()
	loop:
		for runFrames == 0 || a.Frames() < runFrames {
			select {
			case <-ctx.Done():
				slog.Info("interrupted, shutting down")
				break loop
			case <-ticker.C:
				if err := a.Update(ctx); err != nil {
					slog.Error("frame failed", "error", err)
					break loop
				}
			}
		}

		// the signal context may be cancelled already
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		shutdown(shutdownCtx, a)
		fmt.Fprintf(cmd.OutOrStdout(), "Ran %d frames in %s\n", a.Frames(), time.Since(start).Round(time.Millisecond))
		return nil
	},
}

// logEvents mirrors bus events to the logger until the returned func is
// called.
func logEvents(ctx context.Context, a *app.Application) func() {
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	src := a.Bus().Source(256)
	_ = src.Start(ctx)

	done := make(chan struct{})
	lifecycle.Go(ctx, func(context.Context) error {
		defer close(done)
		for e := range src.Events() {
			if ev, ok := e.(core.Event); ok {
				slog.Info("event", "type", ev.Type, "data", ev.Data)
			}
		}
		return nil
	})
	return func() {
		cancel()
		<-done
	}
}

func init() {
	runCmd.Flags().Uint64Var(&runFrames, "frames", 0, "Stop after this many frames (0 runs until interrupted)")
	runCmd.Flags().DurationVar(&runTick, "tick", 16*time.Millisecond, "Frame interval")
	runCmd.Flags().StringVar(&runProject, "project", "", "Project to open before the first frame")
	runCmd.Flags().BoolVar(&runEvents, "events", false, "Log every dispatched event")
	rootCmd.AddCommand(runCmd)
}
