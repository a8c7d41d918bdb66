package main

import (
	"fmt"

	"ledger-core/pkg/config"
	"ledger-core/pkg/logging"
	"ledger-core/pkg/metrics"
	"ledger-core/pkg/store"
	"ledger-core/pkg/store/chain"
	"ledger-core/pkg/store/memory"
	"ledger-core/pkg/store/postgres"
	"ledger-core/pkg/store/redis"
	"ledger-core/pkg/store/resilience"
)

// buildStore opens the configured backend. Remote backends are wrapped in
// a circuit breaker; the chain wraps each of its tiers itself.
func buildStore(cfg config.StoreConfig, collector metrics.MetricsCollector, logger *logging.Logger) (store.Layer, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(memory.Config{
			Name:            "memory",
			CleanupInterval: cfg.Memory.CleanupInterval,
		}), nil

	case config.BackendRedis:
		rds, err := redis.New(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("open redis: %w", err)
		}
		return resilience.New(rds, cfg.Resilience, collector, logger.Named("resilience")), nil

	case config.BackendPostgres:
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return resilience.New(pg, cfg.Resilience, collector, logger.Named("resilience")), nil

	case config.BackendChain:
		return buildChain(cfg, collector, logger)

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// buildChain stacks a bounded memory tier over Redis over the
// authoritative PostgreSQL tier.
func buildChain(cfg config.StoreConfig, collector metrics.MetricsCollector, logger *logging.Logger) (store.Layer, error) {
	l1 := memory.New(memory.Config{
		Name:            "L1-memory",
		MaxSize:         cfg.Memory.MaxSize,
		CleanupInterval: cfg.Memory.CleanupInterval,
	})

	redisConfig := cfg.Redis
	redisConfig.Name = "L2-redis"
	l2, err := redis.New(redisConfig)
	if err != nil {
		l1.Close()
		return nil, fmt.Errorf("open redis: %w", err)
	}

	pgConfig := cfg.Postgres
	pgConfig.Name = "L3-postgres"
	l3, err := postgres.New(pgConfig)
	if err != nil {
		l1.Close()
		l2.Close()
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	c, err := chain.New(chain.Config{
		Resilience:  []resilience.Config{cfg.Resilience, cfg.Resilience, cfg.Resilience},
		Writer:      cfg.Writer,
		TTLStrategy: chain.DecayingTTLStrategy{DecayFactor: 0.5},
		CacheTTL:    cfg.CacheTTL,
		Metrics:     collector,
		Logger:      logger.Named("chain"),
	}, l1, l2, l3)
	if err != nil {
		l1.Close()
		l2.Close()
		l3.Close()
		return nil, err
	}
	return c, nil
}
