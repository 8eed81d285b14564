package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"crypto-price-bot/internal/config"
	"crypto-price-bot/internal/server"
	"crypto-price-bot/internal/storage"
	chstore "crypto-price-bot/internal/storage/clickhouse"
	"crypto-price-bot/internal/storage/memory"
	"crypto-price-bot/internal/storage/migrations"
	pgstore "crypto-price-bot/internal/storage/postgres"
	redisstore "crypto-price-bot/internal/storage/redis"
)

// Redis key prefix for cached feed bodies.
const cachePrefix = "cryptoprice:"

// stores holds the storage implementations and their health checks.
type stores struct {
	teams   storage.TeamStore
	cache   storage.CacheStore
	queries storage.PriceQueryStore // nil disables the query log
	checks  map[string]server.HealthCheck
	closers []func()
}

// Close releases connections in reverse order of opening.
func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores builds memory stores, or Postgres + Redis with ClickHouse when a
// DSN is configured.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*stores, error) {
	if cfg.UseMemory {
		logger.Info("using in-memory storage")
		return &stores{
			teams:   memory.NewTeamStore(),
			cache:   memory.NewCacheStore(),
			queries: memory.NewPriceQueryStore(),
			checks:  map[string]server.HealthCheck{},
		}, nil
	}

	st := &stores{checks: make(map[string]server.HealthCheck)}

	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	st.closers = append(st.closers, pool.Close)
	st.checks["postgres"] = pool.Ping

	if cfg.RunMigrations {
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			st.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		logger.Info("postgres migrations applied")
	}
	st.teams = pgstore.NewTeamStore(pool)

	rdb, err := redisstore.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	st.closers = append(st.closers, func() { rdb.Close() })
	cache := redisstore.NewCacheStore(rdb, cachePrefix)
	st.cache = cache
	st.checks["redis"] = cache.Ping

	if cfg.ClickhouseDSN != "" {
		var conn *chstore.Conn
		if cfg.RunMigrations {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickhouseDSN)
		}
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		st.closers = append(st.closers, func() { conn.Close() })
		st.checks["clickhouse"] = conn.Ping
		st.queries = chstore.NewPriceQueryStore(conn)
	}

	return st, nil
}
