// @title       Library Lending API
// @version     1.0
// @description Book catalog, user directory and lending ledger.
// @BasePath    /
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/librarydesk/lending-api/internal/api"
	"github.com/librarydesk/lending-api/internal/api/metrics"
	"github.com/librarydesk/lending-api/internal/core/domain"
	"github.com/librarydesk/lending-api/internal/core/ports"
	"github.com/librarydesk/lending-api/internal/core/service"
	"github.com/librarydesk/lending-api/internal/infrastructure/config"
	"github.com/librarydesk/lending-api/internal/infrastructure/db/memory"
	"github.com/librarydesk/lending-api/internal/infrastructure/db/mongo"
	"github.com/librarydesk/lending-api/internal/infrastructure/db/postgres"
	"github.com/librarydesk/lending-api/internal/infrastructure/db/redis"
	"github.com/librarydesk/lending-api/internal/infrastructure/http/handlers"
	"github.com/librarydesk/lending-api/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "lending-api: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "lending-api",
	})

	uow, readiness, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	loanOpts := []service.LoanOption{service.WithMetrics(metrics.Ledger{})}
	if cfg.Redis.Addr != "" {
		client, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()

		loanOpts = append(loanOpts, service.WithIdempotencyStore(redis.NewIdempotencyStore(client, cfg.Redis.IdempotencyTTL)))
		readiness = append(readiness, handlers.Dependency{Name: "redis", Pinger: redis.Pinger{Client: client}})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotency cache enabled")
	}

	guard := service.NewGuard(domain.UserDeletePolicy(cfg.UserDeletePolicy))
	e := api.NewRouter(api.Deps{
		Books:          service.NewBookService(uow, guard, logger.Component("catalog")),
		Users:          service.NewUserService(uow, guard, logger.Component("users")),
		Loans:          service.NewLoanService(uow, logger.Component("ledger"), loanOpts...),
		Readiness:      readiness,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		EnableDocs:     !cfg.IsProduction(),
		Registry:       prometheus.NewRegistry(),
	})

	serveErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("store", cfg.StoreDriver).
			Str("user_delete_policy", cfg.UserDeletePolicy).
			Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore connects the configured backend and returns it with its readiness
// check and a release func.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.UnitOfWork, []handlers.Dependency, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, nil, nil, err
		}
		release := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				log.Error().Err(err).Msg("mongo disconnect")
			}
		}
		store := mongo.NewStore(client, db)
		if err := store.EnsureIndexes(ctx); err != nil {
			release()
			return nil, nil, nil, err
		}
		return store, []handlers.Dependency{{Name: "mongodb", Pinger: store}}, release, nil

	case config.DriverPostgres:
		pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
		if err != nil {
			return nil, nil, nil, err
		}
		store := postgres.NewStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return store, []handlers.Dependency{{Name: "postgres", Pinger: store}}, pool.Close, nil

	default:
		log.Warn().Msg("using the in-memory store; data is lost on restart")
		store := memory.NewStore()
		return store, []handlers.Dependency{{Name: "memory", Pinger: store}}, func() {}, nil
	}
}
