package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elwyn-b/pgqueue/config"
	"github.com/elwyn-b/pgqueue/internal/dispatch"
	"github.com/elwyn-b/pgqueue/internal/health"
	"github.com/elwyn-b/pgqueue/internal/infrastructure/postgres"
	ctxlog "github.com/elwyn-b/pgqueue/internal/log"
	"github.com/elwyn-b/pgqueue/internal/metrics"
	"github.com/elwyn-b/pgqueue/internal/worker"
	"github.com/elwyn-b/pgqueue/internal/worker/httpexec"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	logger.Info("db connected")

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	taskRepo := postgres.NewTaskRepository(pool)
	workerRepo := postgres.NewWorkerRepository(pool)
	engine := dispatch.NewEngine(taskRepo, workerRepo, logger)

	executor := httpexec.NewExecutor(logger)
	runner := worker.NewRunner(
		engine,
		executor,
		logger,
		time.Duration(cfg.WorkerPollInterval)*time.Second,
		time.Duration(cfg.WorkerHeartbeatInterval)*time.Second,
		cfg.WorkerMaxTasks,
	)
	go func() {
		if err := runner.Run(ctx); err != nil {
			logger.Error("worker runner exited", "error", err)
		}
	}()

	reaper := dispatch.NewReaper(
		taskRepo,
		logger,
		time.Duration(cfg.ReaperInterval)*time.Second,
		time.Duration(cfg.ReaperHeartbeatTimeout)*time.Second,
	)
	go reaper.Start(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()), http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		writeHealth(w, result, status)
	})
	metricsSrv := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: mux}
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("worker shut down")
}

func writeHealth(w http.ResponseWriter, result health.HealthResult, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
