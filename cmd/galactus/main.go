// Command galactus runs the task dispatch service: an HTTP ingress over
// the dispatch orchestrator, backed by PostgreSQL and a direct-exchange
// AMQP broker.
package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fasttq/galactus/internal/broker"
	"github.com/fasttq/galactus/internal/config"
	"github.com/fasttq/galactus/internal/db"
	"github.com/fasttq/galactus/internal/dispatch"
	"github.com/fasttq/galactus/internal/health"
	"github.com/fasttq/galactus/internal/httpapi"
	"github.com/fasttq/galactus/internal/logging"
	"github.com/fasttq/galactus/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	if err := run(); err != nil {
		slog.Error("galactus: fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := logging.New(level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poolCfg := db.PoolConfig{
		MaxConns:          cfg.DatabaseMaxOpenConns,
		MinConns:          cfg.DatabaseMinConns,
		HealthCheckPeriod: cfg.DatabaseHealthPeriod,
		MaxConnIdleTime:   cfg.DatabaseMaxConnIdle,
		MaxConnLifetime:   cfg.DatabaseMaxConnLife,
		RetryAttempts:     cfg.DatabaseRetryAttempts,
		RetryInterval:     cfg.DatabaseRetryInterval,
	}
	pools, err := db.Open(ctx, cfg.DatabaseReaderURL, cfg.DatabaseWriterURL, poolCfg, migrationsFS, log)
	if err != nil {
		return fmt.Errorf("open database pools: %w", err)
	}
	defer pools.Close()

	driver, err := broker.DialAMQP(cfg.BrokerAddr)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer driver.Close()

	coordinator, err := broker.NewCoordinator(ctx, driver)
	if err != nil {
		return fmt.Errorf("create broker coordinator: %w", err)
	}

	kindStore := store.NewTaskKindStore(pools.Reader, pools.Writer)
	workerStore := store.NewWorkerStore(pools.Reader, pools.Writer)
	taskStore := store.NewTaskInstanceStore(pools.Reader, pools.Writer)

	orch := dispatch.New(kindStore, workerStore, taskStore, coordinator)

	if err := orch.RebuildRegistry(ctx); err != nil {
		log.WarnContext(ctx, "rebuild broker registry from active workers failed", slog.String("error", err.Error()))
	}

	checks := health.Checks{
		"database_reader": pools.Reader.Ping,
		"database_writer": pools.Writer.Ping,
		"broker":          driver.Ping,
	}

	router := httpapi.NewRouter(orch, checks, 30*time.Second)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("galactus: listening", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("galactus: shutting down")
	case err := <-serverErr:
		return fmt.Errorf("serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
