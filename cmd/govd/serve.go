package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"governance-project/app"
	"governance-project/chain"
	"governance-project/db"
	"governance-project/handlers"
	"governance-project/logger"
	"governance-project/routers"
)

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the governance node and its HTTP API",
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	defer logger.Logger.Sync()
	logger.Logger.Info("Starting governance node...",
		zap.String("storage", cfg.Storage.Engine), zap.String("path", cfg.Storage.Path))

	store, err := db.Open(cfg.Storage.Engine, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Engine, err)
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(cfg, store, reg)
	if err != nil {
		return err
	}
	if err := a.Bootstrap(cmd.Context()); err != nil {
		return err
	}

	var producer *chain.Producer
	if cfg.Chain.AutoMine {
		producer = chain.NewProducer(a.Chain, cfg.Chain.BlockTime)
		producer.Start()
		defer producer.Stop()
	}

	r := mux.NewRouter()
	routers.RegisterRoutes(r, handlers.NewHandler(a), reg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Logger.Info("Server running on port",
		zap.Int("port", cfg.Server.Port),
		zap.Bool("auto_mine", cfg.Chain.AutoMine),
		zap.Uint64("head", a.Chain.Head().Number))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Logger.Info("Shutdown signal received, exiting...")
	case err := <-errCh:
		if err != nil {
			logger.Logger.Error("Server stopped", zap.Error(err))
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Warn("Graceful shutdown failed", zap.Error(err))
		return srv.Close()
	}
	return nil
}
