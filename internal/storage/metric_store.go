package storage

import (
	"context"
	"fmt"
	"time"

	"Probekit/pkg/uuidutil"

	"github.com/jackc/pgx/v5/pgxpool"
)

const metricsSchema = `
	CREATE TABLE IF NOT EXISTS historic_metrics (
		id          UUID PRIMARY KEY,
		client_id   TEXT NOT NULL,
		check_name  TEXT NOT NULL,
		issue_time  TIMESTAMPTZ NOT NULL,
		output      TEXT NOT NULL,
		status      SMALLINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

type metricStore struct {
	pool *pgxpool.Pool
}

func NewMetricStore(pool *pgxpool.Pool) MetricStore {
	return &metricStore{pool: pool}
}

// EnsureMetricsSchema creates the history table when it is missing.
func EnsureMetricsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, metricsSchema); err != nil {
		return fmt.Errorf("failed to create historic_metrics table: %w", err)
	}
	return nil
}

func (s *metricStore) Create(ctx context.Context, record *MetricRecord) error {
	record.ID = uuidutil.Ensure(record.ID)
	record.CreatedAt = time.Now()

	query := `
		INSERT INTO historic_metrics (id, client_id, check_name, issue_time, output, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		record.ID,
		record.ClientID,
		record.CheckName,
		record.IssuedAt,
		record.Output,
		record.Status,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store metric result: %w", err)
	}

	return nil
}

func (s *metricStore) Close() {
	s.pool.Close()
}
