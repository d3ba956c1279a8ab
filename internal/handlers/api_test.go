package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	deleted  []string
	stashed  map[string]interface{}
	stashes  []clients.Stash
	resolved []string
	removed  []string
	failOn   string
}

func (f *fakeAPI) DeleteEvent(ctx context.Context, client, check string) error {
	f.deleted = append(f.deleted, client+"/"+check)
	return nil
}

func (f *fakeAPI) CreateStash(ctx context.Context, path string, content interface{}) error {
	if f.stashed == nil {
		f.stashed = map[string]interface{}{}
	}
	f.stashed[path] = content
	return nil
}

func (f *fakeAPI) Stashes(ctx context.Context) ([]clients.Stash, error) {
	return f.stashes, nil
}

func (f *fakeAPI) ResolveEvent(ctx context.Context, client, check string) error {
	if client == f.failOn {
		return errors.New("resolve failed")
	}
	f.resolved = append(f.resolved, client+"/"+check)
	return nil
}

func (f *fakeAPI) DeleteStash(ctx context.Context, path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func TestResolveHandler(t *testing.T) {
	api := &fakeAPI{}
	h := NewResolveHandler(api)

	event := testEvent()
	require.NoError(t, h.Handle(context.Background(), event))

	event.Check.Status = domain.StatusOK
	require.NoError(t, h.Handle(context.Background(), event))

	assert.Equal(t, []string{"web01/check_disk"}, api.deleted)
}

func TestTTLHandler(t *testing.T) {
	api := &fakeAPI{}
	h := NewTTLHandler(api, discardLogger())
	h.now = func() time.Time { return time.Unix(1000, 0) }
	assert.True(t, h.SkipFilters())

	event := testEvent()
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Empty(t, api.stashed)

	event.Check.TTL = 120
	require.NoError(t, h.Handle(context.Background(), event))
	assert.Equal(t, map[string]interface{}{
		"ttl/web01_check_disk": map[string]int64{"ttl": 1120},
	}, api.stashed)
}

func TestTTLNames(t *testing.T) {
	client, check, ok := ttlNames("ttl/web01_check_disk_usage")
	require.True(t, ok)
	assert.Equal(t, "web01", client)
	assert.Equal(t, "check_disk_usage", check)

	_, _, ok = ttlNames("silence/web01")
	assert.False(t, ok)
	_, _, ok = ttlNames("ttl/nounderscore")
	assert.False(t, ok)
}

func TestTTLExpirerExpireOnce(t *testing.T) {
	api := &fakeAPI{
		failOn: "db01",
		stashes: []clients.Stash{
			{Path: "ttl/web01_check_disk", Content: map[string]interface{}{"ttl": float64(900)}},
			{Path: "ttl/web02_check_load", Content: map[string]interface{}{"ttl": float64(1000)}},
			{Path: "ttl/web03_check_ram", Content: map[string]interface{}{"ttl": float64(1500)}},
			{Path: "ttl/db01_check_pg", Content: map[string]interface{}{"ttl": float64(10)}},
			{Path: "ttl/web04_check_cpu", Content: map[string]interface{}{}},
			{Path: "silence/web01", Content: map[string]interface{}{"ttl": float64(1)}},
		},
	}
	e := NewTTLExpirer(api, discardLogger())
	e.now = func() time.Time { return time.Unix(1000, 0) }

	expired, err := e.ExpireOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, expired)
	assert.Equal(t, []string{"web01/check_disk", "web02/check_load"}, api.resolved)
	assert.Equal(t, []string{"ttl/web01_check_disk", "ttl/web02_check_load"}, api.removed)
}

func TestTTLExpirerRunStops(t *testing.T) {
	e := NewTTLExpirer(&fakeAPI{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expirer did not stop")
	}
}
