package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/statusguard/statusguard/internal/config"
	"github.com/statusguard/statusguard/internal/httpapi"
	"github.com/statusguard/statusguard/internal/logging"
	"github.com/statusguard/statusguard/internal/notify"
	"github.com/statusguard/statusguard/internal/probe"
	"github.com/statusguard/statusguard/internal/repo"
	"github.com/statusguard/statusguard/internal/repo/memory"
	"github.com/statusguard/statusguard/internal/repo/postgres"
	"github.com/statusguard/statusguard/internal/repo/sqlite"
	"github.com/statusguard/statusguard/internal/scheduler"
)

type stores struct {
	services  repo.ServiceStore
	results   repo.ResultStore
	incidents repo.IncidentStore
	close     func()
}

func openStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		logger.Info("store_postgres")
		return &stores{services: pg, results: pg, incidents: pg, close: pg.Close}, nil
	}
	if cfg.SQLitePath != "" {
		sq, err := sqlite.New(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		if err := sq.EnsureSchema(ctx); err != nil {
			sq.Close()
			return nil, err
		}
		logger.Info("store_sqlite", zap.String("path", cfg.SQLitePath))
		return &stores{services: sq, results: sq, incidents: sq, close: func() { _ = sq.Close() }}, nil
	}
	logger.Warn("store_memory", zap.String("hint", "set DATABASE_URL or SQLITE_PATH to persist data"))
	m := memory.New()
	return &stores{services: m, results: m, incidents: m, close: func() {}}, nil
}

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.Error(err))
	}
	defer st.close()

	var notifier notify.Notifier
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		notifier = notify.Multi{slack}
		logger.Info("slack_notifications_enabled")
	}

	runner := scheduler.NewRunner(
		logger,
		st.services, st.results, st.incidents,
		probe.NewMultiProber(),
		notifier,
		cfg.CheckInterval,
		cfg.MaxConcurrentChecks,
		cfg.FailuresForIncident,
		cfg.SuccessesForRecovery,
	)
	go runner.Run(ctx)

	api := httpapi.NewServer(
		logger,
		st.services, st.results, st.incidents,
		runner,
		cfg.DefaultTimeout.Milliseconds(),
		cfg.TriggerRPM, cfg.TriggerBurst,
	)
	srv := &http.Server{Addr: cfg.Addr, Handler: api.Router()}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_serve_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}
