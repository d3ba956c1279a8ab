package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Probekit/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

func NewPostgresPool(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres settings: %w", err)
	}
	poolCfg.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("failed to open connection to postgres", "host", cfg.Host, "error", err)
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		log.Error("failed to ping database", "host", cfg.Host, "error", err)
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Debug("connected to postgres database", "host", cfg.Host, "database", cfg.DBName)
	return pool, nil
}
