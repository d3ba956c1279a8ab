package runner

import (
	"context"

	"Probekit/internal/domain"
)

// Check probes one target and reports a status.
type Check interface {
	Name() string
	Run(ctx context.Context) (domain.Result, error)
}

// Collector gathers metric samples for the line protocol.
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]domain.Sample, error)
}

// Handler forwards one event to an external system.
type Handler interface {
	Name() string
	Handle(ctx context.Context, event *domain.Event) error
}

// Unfiltered is implemented by handlers that must see every event, such as
// metric handlers.
type Unfiltered interface {
	SkipFilters() bool
}

// Filter decides whether an event should reach a handler.
type Filter interface {
	Name() string
	Filter(ctx context.Context, event *domain.Event) (bail bool, reason string, err error)
}
