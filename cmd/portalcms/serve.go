// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/olegiv/portal-cms/internal/handler/api"
	"github.com/olegiv/portal-cms/internal/scheduler"
)

func serveCmd() *cobra.Command {
	var (
		host      string
		port      int
		noSched   bool
		rateLimit float64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// Rebuild the link index in case a previous run stopped with
			// saved translations still unindexed.
			if n, err := a.index.ReindexAll(ctx); err != nil {
				a.logger.Warn("link index rebuild on startup failed", "error", err)
			} else {
				a.logger.Info("link index rebuild queued", "translations", n)
			}

			if host != "" {
				a.cfg.ServerHost = host
			}
			if port != 0 {
				a.cfg.ServerPort = port
			}

			var sched *scheduler.Scheduler
			if !noSched {
				sched = scheduler.New(a.db, a.checker(), scheduler.Config{
					LinkCheckSchedule:  a.cfg.LinkcheckSchedule,
					EventRetentionDays: a.cfg.EventRetentionDays,
				}, a.logger)
				if err := sched.Start(); err != nil {
					return fmt.Errorf("starting scheduler: %w", err)
				}
				defer sched.Stop()
			}

			h := api.NewHandler(api.Deps{
				DB:        a.db,
				Cache:     a.cache,
				Links:     a.links,
				Resolver:  a.resolver,
				Scheduler: sched,
				Logger:    a.logger,
			})
			routerCfg := api.DefaultRouterConfig()
			routerCfg.CORSOrigins = a.cfg.CORSOrigins
			if cmd.Flags().Changed("rate-limit") {
				routerCfg.RateLimit = rateLimit
			}

			srv := &http.Server{
				Addr:              a.cfg.ServerAddr(),
				Handler:           h.Routes(routerCfg),
				ReadTimeout:       15 * time.Second,
				ReadHeaderTimeout: 5 * time.Second,
				// Replacement requests wait for the link index to drain
				WriteTimeout:   a.cfg.DrainTimeout + time.Minute,
				IdleTimeout:    60 * time.Second,
				MaxHeaderBytes: 1 << 20,
			}

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("starting server", "addr", srv.Addr, "env", a.cfg.Env)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server: %w", err)
				}
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host to bind to (default: PCMS_SERVER_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port to listen on (default: PCMS_SERVER_PORT)")
	cmd.Flags().BoolVar(&noSched, "no-scheduler", false, "Do not run the periodic link check and event retention jobs")
	cmd.Flags().Float64Var(&rateLimit, "rate-limit", 10, "API requests per second per client, 0 disables limiting")

	return cmd
}
