package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"Probekit/internal/domain"
)

const (
	opsgenieAlertURL = "https://api.opsgenie.com/v1/json/alert"
	opsgenieTimeout  = 3 * time.Second
)

type OpsgenieSettings struct {
	CustomerKey string `mapstructure:"customerKey"`
	Recipients  string `mapstructure:"recipients"`
	URL         string `mapstructure:"url"`
}

type opsgenieRequest struct {
	CustomerKey string `json:"customerKey"`
	Recipients  string `json:"recipients,omitempty"`
	Alias       string `json:"alias"`
	Message     string `json:"message,omitempty"`
}

// OpsgenieHandler creates an alert aliased by the incident key and closes it
// on resolve.
type OpsgenieHandler struct {
	cfg    OpsgenieSettings
	client *http.Client
}

func NewOpsgenieHandler(cfg OpsgenieSettings) (*OpsgenieHandler, error) {
	if cfg.CustomerKey == "" {
		return nil, domain.InvalidConfig("opsgenie customerKey is required")
	}
	if cfg.URL == "" {
		cfg.URL = opsgenieAlertURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &OpsgenieHandler{cfg: cfg, client: &http.Client{Timeout: opsgenieTimeout}}, nil
}

func (h *OpsgenieHandler) Name() string { return "opsgenie" }

func (h *OpsgenieHandler) Timeout() time.Duration { return opsgenieTimeout }

func (h *OpsgenieHandler) Handle(ctx context.Context, event *domain.Event) error {
	body := opsgenieRequest{
		CustomerKey: h.cfg.CustomerKey,
		Recipients:  h.cfg.Recipients,
		Alias:       event.IncidentKey(),
	}
	endpoint := h.cfg.URL
	action := "create"
	if event.IsResolve() {
		endpoint += "/close"
		action = "close"
	} else {
		body.Message = event.Description()
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal opsgenie request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return domain.InvalidConfig("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Classify("opsgenie "+action, err)
	}
	defer resp.Body.Close()

	var reply struct {
		Code  int    `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return domain.UnexpectedResponse("decode opsgenie response", err)
	}
	if reply.Code != http.StatusOK {
		return domain.UnexpectedResponse("opsgenie "+action,
			fmt.Errorf("failed to %s alert %s: code %d %s", action, event.IncidentKey(), reply.Code, reply.Error))
	}
	return nil
}
