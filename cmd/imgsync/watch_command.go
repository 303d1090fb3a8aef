package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"imgsync/internal/logging"
	"imgsync/internal/pipeline"
	"imgsync/internal/scheduler"
	"imgsync/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run once, then rerun whenever documents change",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			r, err := ctx.newRunner(runCtx, cmd, scheduler.NewSession())
			if err != nil {
				return err
			}
			defer r.Close()

			w, err := watch.New(watch.Options{
				Root:       cfg.Paths.SourceDir,
				Extensions: cfg.Discovery.AcceptedFileExtensions,
				Exclude:    cfg.Discovery.Exclude,
				Debounce:   cfg.DebounceDelay(),
				Logger:     r.logger,
			})
			if err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}

			if err := runAndPrime(runCtx, r, w); err != nil {
				return err
			}
			if paths, err := pipeline.Enumerate(cfg.Paths.SourceDir, cfg.Discovery.AcceptedFileExtensions, cfg.Discovery.Exclude); err == nil {
				w.Prime(paths)
			}

			err = w.Run(runCtx, func(ctx context.Context, changed []string) {
				r.logger.Info("documents changed; rerunning", logging.Int("documents", len(changed)))
				if err := runAndPrime(ctx, r, w); err != nil {
					logging.ErrorWithContext(r.logger, "watch run failed", "watch_run_failed",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "the next change triggers another attempt"),
					)
				}
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch: %w", err)
			}
			return nil
		},
	}
}

// runAndPrime runs the pipeline and records the hashes of the documents it
// rewrote so those writes do not schedule another run.
func runAndPrime(ctx context.Context, r *runner, w *watch.Watcher) error {
	summary, err := r.pipeline.Run(ctx, pipeline.Options{})
	if err != nil {
		return err
	}
	w.Prime(summary.UpdatedDocuments)
	return nil
}
