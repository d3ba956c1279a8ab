package storage

import (
	"context"
	"time"
)

// Queue appends documents to named lists.
type Queue interface {
	Push(ctx context.Context, list string, payload interface{}) error
	Close() error
}

// MetricRecord is one metric check result kept for history.
type MetricRecord struct {
	ID        string
	ClientID  string
	CheckName string
	IssuedAt  time.Time
	Output    string
	Status    int
	CreatedAt time.Time
}

// MetricStore persists metric check results.
type MetricStore interface {
	Create(ctx context.Context, record *MetricRecord) error
	Close()
}
