package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/dynamic-collections-go/httpapi"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(parent context.Context) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := c.logger

	a, err := newApp(ctx, c.cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("closing resources failed", zap.Error(err))
		}
	}()

	handler, err := httpapi.NewServer(
		httpapi.Config{
			CORSAllowAll:   c.cfg.Server.CORSAllowAll,
			UseAccessLog:   c.cfg.Server.AccessLog,
			RedactErrors:   c.cfg.Server.RedactErrors,
			RequestTimeout: c.cfg.Server.RequestTimeout,
			DebugLogging:   logger.Core().Enabled(zap.DebugLevel),
		},
		httpapi.Dependencies{
			Store:          a.store,
			Settings:       a.settings,
			Availability:   a.resolver,
			Auth:           a.auth,
			Logger:         logger.With(zap.String("component", "api")),
			Metrics:        a.metrics,
			TracerProvider: a.tracerProvider,
		},
	)
	if err != nil {
		return err
	}

	s := &http.Server{
		Addr:              c.cfg.Server.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      c.cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting api server",
			zap.String("address", s.Addr),
			zap.String("engine", c.cfg.Store.Engine),
			zap.String("settings_backend", c.cfg.Settings.Backend),
		)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-runCtx.Done()
		logger.Debug("shutting down api server")
		shutdownCtx, sCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer sCancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("api server shutdown did not complete gracefully: %w", err)
		}
		logger.Info("api server stopped")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}

	return nil
}
