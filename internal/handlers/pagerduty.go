package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"Probekit/internal/domain"
)

const (
	pagerdutyEventsURL = "https://events.pagerduty.com/generic/2010-04-15/create_event.json"
	pagerdutyTimeout   = 10 * time.Second
)

type PagerdutySettings struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

type pagerdutyEvent struct {
	ServiceKey  string        `json:"service_key"`
	EventType   string        `json:"event_type"`
	IncidentKey string        `json:"incident_key"`
	Description string        `json:"description,omitempty"`
	Details     *domain.Event `json:"details,omitempty"`
}

// PagerdutyHandler triggers an incident on create and resolves it on resolve.
type PagerdutyHandler struct {
	cfg    PagerdutySettings
	client *http.Client
}

func NewPagerdutyHandler(cfg PagerdutySettings) (*PagerdutyHandler, error) {
	if cfg.APIKey == "" {
		return nil, domain.InvalidConfig("pagerduty api_key is required")
	}
	if cfg.URL == "" {
		cfg.URL = pagerdutyEventsURL
	}
	return &PagerdutyHandler{cfg: cfg, client: &http.Client{Timeout: pagerdutyTimeout}}, nil
}

func (h *PagerdutyHandler) Name() string { return "pagerduty" }

func (h *PagerdutyHandler) Timeout() time.Duration { return pagerdutyTimeout }

func (h *PagerdutyHandler) Handle(ctx context.Context, event *domain.Event) error {
	body := pagerdutyEvent{
		ServiceKey:  h.cfg.APIKey,
		EventType:   "trigger",
		IncidentKey: event.IncidentKey(),
		Description: event.Description(),
		Details:     event,
	}
	if event.IsResolve() {
		body = pagerdutyEvent{
			ServiceKey:  h.cfg.APIKey,
			EventType:   "resolve",
			IncidentKey: event.IncidentKey(),
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal pagerduty event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.URL, bytes.NewReader(data))
	if err != nil {
		return domain.InvalidConfig("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Classify("pagerduty "+body.EventType, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.UnexpectedResponse("decode pagerduty response", err)
	}
	if reply.Status != "success" {
		return domain.UnexpectedResponse("pagerduty "+body.EventType,
			fmt.Errorf("failed to %s incident %s: %s", body.EventType, event.IncidentKey(), reply.Message))
	}
	return nil
}
