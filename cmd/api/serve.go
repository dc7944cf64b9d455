package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Wikid82/phishguard/internal/api/routes"
	"github.com/Wikid82/phishguard/internal/config"
	"github.com/Wikid82/phishguard/internal/logger"
	"github.com/Wikid82/phishguard/internal/server"
	"github.com/Wikid82/phishguard/internal/shield"
	"github.com/Wikid82/phishguard/internal/version"
)

func newServeCmd() *cobra.Command {
	var noWorkers bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, by default, the analysis workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closer, err := loadConfig("phishguard")
			if err != nil {
				return err
			}
			defer closer.Close()

			if noWorkers && cfg.Queue.Backend != "redis" {
				return fmt.Errorf("--no-workers requires the redis queue backend")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, noWorkers)
		},
	}
	cmd.Flags().BoolVar(&noWorkers, "no-workers", false, "serve the API only; jobs are processed by separate worker processes")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, noWorkers bool) error {
	log := logger.Log()
	log.WithField("version", version.Full()).WithField("queue", cfg.Queue.Backend).Infof("starting %s", version.Name)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wait func()
	if noWorkers {
		// the review loop still belongs to the process that records attacks
		done := make(chan struct{})
		go func() {
			defer close(done)
			a.engine.Run(ctx)
		}()
		wait = func() { <-done; a.notifications.Wait() }
	} else {
		if wait, err = a.startBackground(ctx); err != nil {
			return err
		}
	}

	srv, err := server.New(ctx, a.db, cfg, routes.Deps{
		Queue:         a.queue,
		Coordinator:   a.coordinator,
		Scorer:        a.scorer,
		Detector:      a.detector,
		Engine:        a.engine,
		Shield:        shield.New(cfg.Security, a.detector, a.engine, a.sink, a.resolver),
		Notifications: a.notifications,
		Registry:      a.registry,
	}, a.prom)
	if err != nil {
		cancel()
		wait()
		return fmt.Errorf("build server: %w", err)
	}

	runErr := srv.Run(ctx)
	cancel()
	wait()
	if runErr != nil {
		return fmt.Errorf("server error: %w", runErr)
	}
	log.Info("shutdown complete")
	return nil
}
