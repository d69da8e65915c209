package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/v0xg/bddgen/internal/app"
	"github.com/v0xg/bddgen/internal/observability"
	"github.com/v0xg/bddgen/internal/server"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  serve,
	}
	cmd.Flags().String("listen", "", "Listen address (default from api.listen_addr)")
	cmd.Flags().Int("max-jobs", 0, "Concurrent analyses (default from api.max_concurrent_jobs)")
	_ = v.BindPFlag("api.listen_addr", cmd.Flags().Lookup("listen"))
	_ = v.BindPFlag("api.max_concurrent_jobs", cmd.Flags().Lookup("max-jobs"))
	return cmd
}

func serve(cmd *cobra.Command, _ []string) error {
	logger := observability.GetLogger()

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	provider := newProvider(logger)
	rc, closeCache := openCache(logger)
	defer closeCache()

	gen := app.NewGenerator(cfg, provider, rc, logger)
	srv := server.NewServer(server.Config{
		ListenAddr:        cfg.API.ListenAddr,
		MaxConcurrentJobs: cfg.API.MaxConcurrentJobs,
	}, gen, logger)
	defer srv.Close()

	httpSrv := srv.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("API listening", zap.String("addr", httpSrv.Addr))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving API: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down API: %w", err)
	}
	return nil
}
