package handlers

import (
	"context"
	"fmt"
	"strings"

	"Probekit/internal/domain"
	"Probekit/internal/runner"
)

const (
	defaultOccurrences = 1
	defaultInterval    = 30
	defaultRefresh     = 1800
)

type stashChecker interface {
	StashExists(ctx context.Context, path string) (bool, error)
}

type eventChecker interface {
	EventExists(ctx context.Context, client, check string) (bool, error)
}

type filterAPI interface {
	stashChecker
	eventChecker
}

// DisabledFilter drops events whose check sets "alert": false.
type DisabledFilter struct{}

func (DisabledFilter) Name() string { return "disabled" }

func (DisabledFilter) Filter(ctx context.Context, event *domain.Event) (bool, string, error) {
	if event.Check.Alert != nil && !*event.Check.Alert {
		return true, "alert disabled", nil
	}
	return false, "", nil
}

// RepeatedFilter lets the first qualifying occurrence through and then one
// event per refresh period.
type RepeatedFilter struct{}

func (RepeatedFilter) Name() string { return "repeated" }

func (RepeatedFilter) Filter(ctx context.Context, event *domain.Event) (bool, string, error) {
	occurrences := orDefault(event.Check.Occurrences, defaultOccurrences)
	interval := orDefault(event.Check.Interval, defaultInterval)
	refresh := orDefault(event.Check.Refresh, defaultRefresh)

	if event.Occurrences < occurrences {
		return true, "not enough occurrences", nil
	}
	if event.Occurrences > occurrences && event.Action == domain.ActionCreate {
		number := refresh / interval
		if number != 0 && (event.Occurrences-occurrences)%number != 0 {
			return true, fmt.Sprintf("only handling every %d occurrences", number), nil
		}
	}
	return false, "", nil
}

// SilencedFilter drops events silenced by a stash for the client or the
// client/check pair.
type SilencedFilter struct {
	api stashChecker
}

func NewSilencedFilter(api stashChecker) *SilencedFilter {
	return &SilencedFilter{api: api}
}

func (f *SilencedFilter) Name() string { return "silenced" }

func (f *SilencedFilter) Filter(ctx context.Context, event *domain.Event) (bool, string, error) {
	paths := []string{
		"silence/" + event.Client.Name,
		"silence/" + event.Client.Name + "/" + event.Check.Name,
	}
	for _, path := range paths {
		exists, err := f.api.StashExists(ctx, path)
		if err != nil {
			return false, "", fmt.Errorf("failed to check stash %s: %w", path, err)
		}
		if exists {
			return true, "stash exists: " + path, nil
		}
	}
	return false, "", nil
}

// DependenciesFilter drops events while an event is open for one of the
// check's dependencies, given as "check" or "client/check".
type DependenciesFilter struct {
	api eventChecker
}

func NewDependenciesFilter(api eventChecker) *DependenciesFilter {
	return &DependenciesFilter{api: api}
}

func (f *DependenciesFilter) Name() string { return "dependencies" }

func (f *DependenciesFilter) Filter(ctx context.Context, event *domain.Event) (bool, string, error) {
	for _, dependency := range event.Check.Dependencies {
		client, check := event.Client.Name, dependency
		if i := strings.LastIndex(dependency, "/"); i >= 0 {
			client, check = dependency[:i], dependency[i+1:]
		}
		if client == "" || check == "" {
			continue
		}

		exists, err := f.api.EventExists(ctx, client, check)
		if err != nil {
			return false, "", fmt.Errorf("failed to check dependency %s: %w", dependency, err)
		}
		if exists {
			return true, "check dependency event exists: " + client + "/" + check, nil
		}
	}
	return false, "", nil
}

// DefaultFilters returns the filters applied to every notification handler.
func DefaultFilters(api filterAPI) []runner.Filter {
	return []runner.Filter{
		DisabledFilter{},
		RepeatedFilter{},
		NewSilencedFilter(api),
		NewDependenciesFilter(api),
	}
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}
