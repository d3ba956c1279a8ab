package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/pkg/validator"
)

const slackIconURL = "http://sensuapp.org/img/sensu_logo_large-c92d73db.png"

var slackColors = map[domain.Status]string{
	domain.StatusOK:       "#36a64f",
	domain.StatusWarning:  "#FFCC00",
	domain.StatusCritical: "#FF0000",
	domain.StatusUnknown:  "#6600CC",
}

type SlackSettings struct {
	WebhookURL    string `mapstructure:"webhook_url"`
	MessagePrefix string `mapstructure:"message_prefix"`
	BotName       string `mapstructure:"bot_name"`
	Surround      string `mapstructure:"surround"`
}

type slackAttachment struct {
	Text  string `json:"text"`
	Color string `json:"color"`
}

type slackPayload struct {
	IconURL     string            `json:"icon_url"`
	Username    string            `json:"username,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
}

type SlackHandler struct {
	cfg    SlackSettings
	client *http.Client
}

func NewSlackHandler(cfg SlackSettings, timeout time.Duration) (*SlackHandler, error) {
	if cfg.WebhookURL == "" {
		return nil, domain.InvalidConfig("slack webhook_url is required")
	}
	if !validator.ValidateURL(cfg.WebhookURL) {
		return nil, domain.InvalidConfig("invalid slack webhook_url %q", cfg.WebhookURL)
	}
	return &SlackHandler{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (h *SlackHandler) Name() string { return "slack" }

func (h *SlackHandler) Handle(ctx context.Context, event *domain.Event) error {
	data, err := json.Marshal(h.payload(event))
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	form := url.Values{"payload": {string(data)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.WebhookURL, strings.NewReader(form.Encode()))
	if err != nil {
		return domain.InvalidConfig("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Classify("slack webhook", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.UnexpectedResponse("slack webhook", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (h *SlackHandler) payload(event *domain.Event) slackPayload {
	notice := event.IncidentKey() + ": " + slackDescription(event)
	if h.cfg.Surround != "" {
		notice = h.cfg.Surround + notice + h.cfg.Surround
	}
	if h.cfg.MessagePrefix != "" {
		notice = h.cfg.MessagePrefix + " " + notice
	}

	color, ok := slackColors[event.Check.Status]
	if !ok {
		color = slackColors[domain.StatusUnknown]
	}

	return slackPayload{
		IconURL:     slackIconURL,
		Username:    h.cfg.BotName,
		Attachments: []slackAttachment{{Text: notice, Color: color}},
	}
}

func slackDescription(event *domain.Event) string {
	if event.Notification != "" {
		return event.Notification
	}
	return strings.Join([]string{
		strings.TrimSpace(event.Check.Output),
		event.Client.Address,
		strings.Join(event.Client.Subscriptions, ","),
	}, " : ")
}
