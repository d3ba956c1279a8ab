package handlers

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/domain"
)

const ttlStashPrefix = "ttl/"

type eventDeleter interface {
	DeleteEvent(ctx context.Context, client, check string) error
}

// ResolveHandler clears the event on the server for any non-OK check.
type ResolveHandler struct {
	api eventDeleter
}

func NewResolveHandler(api eventDeleter) *ResolveHandler {
	return &ResolveHandler{api: api}
}

func (h *ResolveHandler) Name() string { return "resolve" }

func (h *ResolveHandler) Handle(ctx context.Context, event *domain.Event) error {
	if event.Check.Status == domain.StatusOK {
		return nil
	}
	return h.api.DeleteEvent(ctx, event.Client.Name, event.Check.Name)
}

type stashCreator interface {
	CreateStash(ctx context.Context, path string, content interface{}) error
}

// TTLHandler records when a check with a ttl should be considered stale.
type TTLHandler struct {
	api stashCreator
	log *slog.Logger
	now func() time.Time
}

func NewTTLHandler(api stashCreator, log *slog.Logger) *TTLHandler {
	return &TTLHandler{api: api, log: log, now: time.Now}
}

func (h *TTLHandler) Name() string { return "ttl" }

func (h *TTLHandler) SkipFilters() bool { return true }

func (h *TTLHandler) Handle(ctx context.Context, event *domain.Event) error {
	if event.Check.TTL <= 0 {
		h.log.Debug("event has no TTL expiration", "event", event.IncidentKey())
		return nil
	}

	expiresAt := h.now().Unix() + int64(event.Check.TTL)
	path := ttlStashPath(event.Client.Name, event.Check.Name)
	if err := h.api.CreateStash(ctx, path, map[string]int64{"ttl": expiresAt}); err != nil {
		return err
	}
	h.log.Info("stashed TTL for event", "path", path, "expires_in", event.Check.TTL)
	return nil
}

func ttlStashPath(client, check string) string {
	return ttlStashPrefix + client + "_" + check
}

// ttlNames splits a ttl stash path back into client and check. Client names
// must not contain an underscore.
func ttlNames(path string) (string, string, bool) {
	rest, ok := strings.CutPrefix(path, ttlStashPrefix)
	if !ok {
		return "", "", false
	}
	client, check, ok := strings.Cut(rest, "_")
	if !ok || client == "" || check == "" {
		return "", "", false
	}
	return client, check, true
}

type ttlAPI interface {
	Stashes(ctx context.Context) ([]clients.Stash, error)
	ResolveEvent(ctx context.Context, client, check string) error
	DeleteStash(ctx context.Context, path string) error
}

// TTLExpirer resolves events whose ttl stash has expired.
type TTLExpirer struct {
	api ttlAPI
	log *slog.Logger
	now func() time.Time
}

func NewTTLExpirer(api ttlAPI, log *slog.Logger) *TTLExpirer {
	return &TTLExpirer{api: api, log: log, now: time.Now}
}

// Run expires stashes every interval until ctx is done.
func (e *TTLExpirer) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.ExpireOnce(ctx); err != nil {
				e.log.Error("ttl expiry failed", "error", err)
			}
		}
	}
}

// ExpireOnce resolves and deletes every expired ttl stash and returns how
// many it expired.
func (e *TTLExpirer) ExpireOnce(ctx context.Context) (int, error) {
	stashes, err := e.api.Stashes(ctx)
	if err != nil {
		return 0, err
	}

	now := e.now().Unix()
	expired := 0
	for _, stash := range stashes {
		client, check, ok := ttlNames(stash.Path)
		if !ok {
			continue
		}
		expiry, ok := stashExpiry(stash.Content)
		if !ok || expiry > now {
			continue
		}

		e.log.Info("ttl entry expired", "client", client, "check", check, "age", now-expiry)
		if err := e.api.ResolveEvent(ctx, client, check); err != nil {
			e.log.Error("failed to resolve expired event", "client", client, "check", check, "error", err)
			continue
		}
		if err := e.api.DeleteStash(ctx, stash.Path); err != nil {
			e.log.Error("failed to delete ttl stash", "path", stash.Path, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

func stashExpiry(content map[string]interface{}) (int64, bool) {
	switch v := content["ttl"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}
