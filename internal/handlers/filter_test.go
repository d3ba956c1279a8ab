package handlers

import (
	"context"
	"errors"
	"testing"

	"Probekit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent() *domain.Event {
	return &domain.Event{
		Action:      domain.ActionCreate,
		Occurrences: 1,
		Client: domain.Client{
			Name:          "web01",
			Address:       "10.0.0.5",
			Subscriptions: []string{"web", "base"},
		},
		Check: domain.Check{
			Name:    "check_disk",
			Command: "check-disk -w 85",
			Output:  "CheckDisk CRITICAL: /data 97%\n",
			Status:  domain.StatusCritical,
			Issued:  1700000000,
		},
	}
}

func TestDisabledFilter(t *testing.T) {
	event := testEvent()

	bail, _, err := DisabledFilter{}.Filter(context.Background(), event)
	require.NoError(t, err)
	assert.False(t, bail)

	alert := false
	event.Check.Alert = &alert
	bail, reason, err := DisabledFilter{}.Filter(context.Background(), event)
	require.NoError(t, err)
	assert.True(t, bail)
	assert.Equal(t, "alert disabled", reason)
}

func TestRepeatedFilter(t *testing.T) {
	tests := []struct {
		name        string
		action      domain.Action
		occurrences int
		check       domain.Check
		bail        bool
	}{
		{name: "first occurrence", action: domain.ActionCreate, occurrences: 1, bail: false},
		{name: "below required", action: domain.ActionCreate, occurrences: 2, check: domain.Check{Occurrences: 3}, bail: true},
		{name: "resolve below required", action: domain.ActionResolve, occurrences: 1, check: domain.Check{Occurrences: 3}, bail: true},
		{name: "resolve between refreshes", action: domain.ActionResolve, occurrences: 5, check: domain.Check{Interval: 60, Refresh: 600}, bail: false},
		{name: "between refreshes", action: domain.ActionCreate, occurrences: 5, check: domain.Check{Interval: 60, Refresh: 600}, bail: true},
		{name: "on refresh", action: domain.ActionCreate, occurrences: 11, check: domain.Check{Interval: 60, Refresh: 600}, bail: false},
		{name: "refresh shorter than interval", action: domain.ActionCreate, occurrences: 7, check: domain.Check{Interval: 60, Refresh: 30}, bail: false},
		{name: "default refresh", action: domain.ActionCreate, occurrences: 61, bail: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := testEvent()
			event.Action = tt.action
			event.Occurrences = tt.occurrences
			event.Check.Occurrences = tt.check.Occurrences
			event.Check.Interval = tt.check.Interval
			event.Check.Refresh = tt.check.Refresh

			bail, _, err := RepeatedFilter{}.Filter(context.Background(), event)
			require.NoError(t, err)
			assert.Equal(t, tt.bail, bail)
		})
	}
}

type fakeStashes struct {
	present map[string]bool
	events  map[string]bool
	err     error
	asked   []string
}

func (f *fakeStashes) EventExists(ctx context.Context, client, check string) (bool, error) {
	f.asked = append(f.asked, client+"/"+check)
	if f.err != nil {
		return false, f.err
	}
	return f.events[client+"/"+check], nil
}

func (f *fakeStashes) StashExists(ctx context.Context, path string) (bool, error) {
	f.asked = append(f.asked, path)
	if f.err != nil {
		return false, f.err
	}
	return f.present[path], nil
}

func TestSilencedFilter(t *testing.T) {
	t.Run("not silenced", func(t *testing.T) {
		api := &fakeStashes{}
		bail, _, err := NewSilencedFilter(api).Filter(context.Background(), testEvent())
		require.NoError(t, err)
		assert.False(t, bail)
		assert.Equal(t, []string{"silence/web01", "silence/web01/check_disk"}, api.asked)
	})

	t.Run("check silenced", func(t *testing.T) {
		api := &fakeStashes{present: map[string]bool{"silence/web01/check_disk": true}}
		bail, reason, err := NewSilencedFilter(api).Filter(context.Background(), testEvent())
		require.NoError(t, err)
		assert.True(t, bail)
		assert.Contains(t, reason, "silence/web01/check_disk")
	})

	t.Run("client silenced", func(t *testing.T) {
		api := &fakeStashes{present: map[string]bool{"silence/web01": true}}
		bail, _, err := NewSilencedFilter(api).Filter(context.Background(), testEvent())
		require.NoError(t, err)
		assert.True(t, bail)
		assert.Len(t, api.asked, 1)
	})

	t.Run("api error", func(t *testing.T) {
		api := &fakeStashes{err: errors.New("boom")}
		bail, _, err := NewSilencedFilter(api).Filter(context.Background(), testEvent())
		require.Error(t, err)
		assert.False(t, bail)
	})
}

func TestDefaultFilters(t *testing.T) {
	filters := DefaultFilters(&fakeStashes{})
	names := make([]string, 0, len(filters))
	for _, f := range filters {
		names = append(names, f.Name())
	}
	assert.Equal(t, []string{"disabled", "repeated", "silenced", "dependencies"}, names)
}

func TestDependenciesFilter(t *testing.T) {
	t.Run("no dependencies", func(t *testing.T) {
		api := &fakeStashes{}
		bail, _, err := NewDependenciesFilter(api).Filter(context.Background(), testEvent())
		require.NoError(t, err)
		assert.False(t, bail)
		assert.Empty(t, api.asked)
	})

	t.Run("dependencies clear", func(t *testing.T) {
		api := &fakeStashes{}
		event := testEvent()
		event.Check.Dependencies = []string{"check_mount", "db01/check_postgres"}

		bail, _, err := NewDependenciesFilter(api).Filter(context.Background(), event)
		require.NoError(t, err)
		assert.False(t, bail)
		assert.Equal(t, []string{"web01/check_mount", "db01/check_postgres"}, api.asked)
	})

	t.Run("same client dependency failing", func(t *testing.T) {
		api := &fakeStashes{events: map[string]bool{"web01/check_mount": true}}
		event := testEvent()
		event.Check.Dependencies = []string{"check_mount", "db01/check_postgres"}

		bail, reason, err := NewDependenciesFilter(api).Filter(context.Background(), event)
		require.NoError(t, err)
		assert.True(t, bail)
		assert.Equal(t, "check dependency event exists: web01/check_mount", reason)
		assert.Len(t, api.asked, 1)
	})

	t.Run("other client dependency failing", func(t *testing.T) {
		api := &fakeStashes{events: map[string]bool{"db01/check_postgres": true}}
		event := testEvent()
		event.Check.Dependencies = []string{"db01/check_postgres"}

		bail, _, err := NewDependenciesFilter(api).Filter(context.Background(), event)
		require.NoError(t, err)
		assert.True(t, bail)
	})

	t.Run("api error", func(t *testing.T) {
		api := &fakeStashes{err: errors.New("boom")}
		event := testEvent()
		event.Check.Dependencies = []string{"check_mount"}

		bail, _, err := NewDependenciesFilter(api).Filter(context.Background(), event)
		require.Error(t, err)
		assert.False(t, bail)
	})
}
