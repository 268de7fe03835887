package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/notsopreety/uptime-monitor/internal/config"
	"github.com/notsopreety/uptime-monitor/internal/httpapi"
	"github.com/notsopreety/uptime-monitor/internal/logging"
	"github.com/notsopreety/uptime-monitor/internal/probe"
	"github.com/notsopreety/uptime-monitor/internal/repo"
	"github.com/notsopreety/uptime-monitor/internal/repo/memory"
	"github.com/notsopreety/uptime-monitor/internal/repo/postgres"
	"github.com/notsopreety/uptime-monitor/internal/repo/sqlite"
	"github.com/notsopreety/uptime-monitor/internal/scheduler"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	targets, results, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_failed", zap.Error(err))
	}
	defer closeStore()

	// One shared client for every probe; the per-probe context carries
	// the timeout, so the client itself has none.
	client := &http.Client{}
	prober := probe.New(client, cfg.ProbeTimeout)

	runner := scheduler.NewRunner(logger, targets, results, prober,
		cfg.InitialDelay, cfg.CycleEvery, cfg.Concurrency)
	runnerDone := make(chan struct{})
	go func() {
		runner.Run(ctx)
		close(runnerDone)
	}()

	api := httpapi.NewServer(logger, targets, results, runner)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api_serve_failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	// Let an in-flight cycle finish and persist its batch.
	<-runnerDone
	logger.Info("stopped")
}

func openStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.TargetStore, repo.ResultStore, func(), error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("store_postgres")
		return pg, pg, pg.Close, nil
	case cfg.SQLitePath != "":
		sq, err := sqlite.New(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
		return sq, sq, func() { _ = sq.Close() }, nil
	default:
		m := memory.New()
		logger.Info("store_memory")
		return m, m, func() {}, nil
	}
}
