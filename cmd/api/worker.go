package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/version"
)

func newWorkerCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process analysis jobs from the shared redis queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig("phishguard-worker")
			if err != nil {
				return err
			}
			defer closer.Close()

			if cfg.Queue.Backend != "redis" {
				return fmt.Errorf("worker requires PHISHGUARD_QUEUE_BACKEND=redis, got %q", cfg.Queue.Backend)
			}
			if workers > 0 {
				cfg.Queue.Workers = workers
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.close()

			logger.Log().WithField("version", version.Full()).WithField("workers", cfg.Queue.Workers).
				Infof("starting %s worker", version.Name)

			wait, err := a.startBackground(ctx)
			if err != nil {
				return err
			}
			<-ctx.Done()
			wait()
			logger.Log().Info("worker stopped")
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent workers (default from PHISHGUARD_WORKERS)")
	return cmd
}
