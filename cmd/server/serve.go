package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/warp/daily-reflections/api"
	"github.com/warp/daily-reflections/auth"
	"github.com/warp/daily-reflections/config"
	"github.com/warp/daily-reflections/logging"
	"github.com/warp/daily-reflections/reflection"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize store", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
		return err
	}
	defer store.Close()

	loc, err := cfg.Clock.Location()
	if err != nil {
		return err
	}
	svc := reflection.NewService(store,
		reflection.WithLocation(loc),
		reflection.WithTimeout(cfg.Storage.Timeout),
		reflection.WithLogger(logger.Named("reflection")),
	)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	handler := api.NewHandler(svc, logger.Named("api"), api.NewMetrics(registry))
	router := api.NewRouter(api.RouterConfig{
		Handler:     handler,
		Auth:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		Registry:    registry,
		Logger:      logger.Named("http"),
		CORSOrigins: cfg.Server.CORSOrigins,
		Ping:        store.Ping,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("storage", cfg.Storage.Driver),
			zap.String("timezone", loc.String()),
			zap.String("version", version),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
