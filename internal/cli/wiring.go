package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"victory-readmodel/internal/config"
	"victory-readmodel/internal/dashboard"
	"victory-readmodel/internal/observability"
	"victory-readmodel/internal/storage"
	chstore "victory-readmodel/internal/storage/clickhouse"
	"victory-readmodel/internal/storage/memory"
	"victory-readmodel/internal/storage/migrations"
	pgstore "victory-readmodel/internal/storage/postgres"
	"victory-readmodel/internal/sui"
)

// pgConnLifetime recycles archive connections across failovers.
const pgConnLifetime = 30 * time.Minute

// stores holds every storage implementation.
type stores struct {
	events  storage.RawEventStore
	cursors storage.IngestCursorStore
	pools   storage.PoolHistoryStore
	health  storage.HealthHistoryStore
	close   func()
}

// openStores connects and migrates the configured backends.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) (*stores, error) {
	if cfg.Storage.UseMemory {
		logger.Info("using in-memory storage")
		return &stores{
			events:  memory.NewRawEventStore(),
			cursors: memory.NewIngestCursorStore(),
			pools:   memory.NewPoolHistoryStore(),
			health:  memory.NewHealthHistoryStore(),
			close:   func() {},
		}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN,
		pgstore.WithMaxConns(int32(cfg.FetchConcurrency)+2),
		pgstore.WithConnLifetime(pgConnLifetime),
		pgstore.WithMetrics(metrics),
	)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	return &stores{
		events:  pgstore.NewRawEventStore(pool),
		cursors: pgstore.NewIngestCursorStore(pool),
		pools:   chstore.NewPoolHistoryStore(conn),
		health:  chstore.NewHealthHistoryStore(conn),
		close: func() {
			conn.Close()
			pool.Close()
		},
	}, nil
}

func newRPCClient(cfg *config.Config, logger *zap.Logger, metrics *observability.Metrics) *sui.HTTPClient {
	return sui.NewHTTPClient(cfg.RPCEndpoint,
		sui.WithLogger(logger.Named("rpc")),
		sui.WithMetrics(metrics),
	)
}

func newLoader(cfg *config.Config, events dashboard.EventSource, objects dashboard.ObjectReader, logger *zap.Logger) *dashboard.Loader {
	return dashboard.NewLoader(events, objects, dashboard.LoaderConfig{
		PoolEventTypes:         cfg.Events.Pool(),
		AllocationEventTypes:   cfg.Events.Allocation(),
		RevenueEventTypes:      cfg.Events.Revenue(),
		LockerObjectID:         cfg.Objects.Locker,
		VictoryVaultID:         cfg.Objects.VictoryVault,
		SUIVaultID:             cfg.Objects.SUIVault,
		DefaultEpochDurationMs: cfg.DefaultEpochDuration.Milliseconds(),
		Concurrency:            cfg.FetchConcurrency,
	}, logger.Named("loader"))
}
