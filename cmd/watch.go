package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/repomindhq/repomind/internal/config"
	"github.com/repomindhq/repomind/internal/watcher"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the repository and sync the memory document continuously",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Config edits rebuild the whole pipeline rather than
			// patching a live one; cycles are short and a restart
			// between them is invisible.
			reload := make(chan struct{}, 1)

			for {
				env, err := buildEnv()
				if err != nil {
					return err
				}

				// A crash mid-cycle leaves the processing flag set;
				// nothing else can be running now, so clear it.
				if err := env.states.ResetStaleLock(); err != nil {
					env.Close()
					return err
				}

				w, err := watcher.New(env.repo.Root(), env.sync, env.debounce)
				if err != nil {
					env.Close()
					return err
				}
				if err := w.Start(ctx); err != nil {
					env.Close()
					return err
				}

				cw, err := config.NewWatcher(env.repo.Root())
				if err == nil {
					cw.OnChange(func(config.Config) {
						select {
						case reload <- struct{}{}:
						default:
						}
					})
					if err := cw.Start(); err != nil {
						slog.Warn("config watcher unavailable", "error", err)
						cw = nil
					}
				} else {
					cw = nil
				}

				// Catch up on anything that happened while we were not
				// running before settling into event-driven mode.
				if res, err := env.sync.SyncOnce(ctx); err != nil {
					slog.Error("initial sync failed", "error", err)
				} else if res.Kind != "" {
					slog.Info("initial sync finished", "kind", res.Kind, "outcome", res.Outcome)
				}

				select {
				case <-ctx.Done():
					w.Stop()
					if cw != nil {
						cw.Stop()
					}
					env.Close()
					slog.Info("shutting down")
					return nil
				case <-reload:
					slog.Info("config changed, restarting pipeline")
					w.Stop()
					if cw != nil {
						cw.Stop()
					}
					env.Close()
				}
			}
		},
	}
}
