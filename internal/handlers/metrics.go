package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/graphite"
	"Probekit/internal/storage"
)

// GraphiteHandler relays metric check output to carbon after renaming the
// client inside each path.
type GraphiteHandler struct {
	client  *graphite.Client
	mutator graphite.Mutator
	log     *slog.Logger
}

func NewGraphiteHandler(client *graphite.Client, mutator graphite.Mutator, log *slog.Logger) *GraphiteHandler {
	return &GraphiteHandler{client: client, mutator: mutator, log: log}
}

func (h *GraphiteHandler) Name() string { return "graphite" }

func (h *GraphiteHandler) SkipFilters() bool { return true }

func (h *GraphiteHandler) Handle(ctx context.Context, event *domain.Event) error {
	output := h.mutator.Mutate(event.Check.Output, event.Client.Name)

	samples, errs := graphite.Parse(output)
	for _, err := range errs {
		h.log.Warn("skipping metric line", "check", event.Check.Name, "error", err)
	}

	sent, err := h.client.Send(ctx, samples, h.log)
	if err != nil {
		return err
	}
	h.log.Debug("metrics relayed", "address", h.client.Address(), "samples", sent)
	return nil
}

type InfluxDBSettings struct {
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSL      bool   `mapstructure:"ssl"`
}

func DefaultInfluxDBSettings() InfluxDBSettings {
	return InfluxDBSettings{Server: "localhost", Port: 8086}
}

func (s InfluxDBSettings) writeURL() string {
	scheme := "http"
	if s.SSL {
		scheme = "https"
	}
	query := url.Values{}
	query.Set("db", s.Database)
	query.Set("precision", "s")
	return fmt.Sprintf("%s://%s/write?%s", scheme, net.JoinHostPort(s.Server, strconv.Itoa(s.Port)), query.Encode())
}

// InfluxDBHandler writes each metric line as a point keyed by the path
// without its first segment, tagged with the client host and address.
type InfluxDBHandler struct {
	cfg    InfluxDBSettings
	client *http.Client
}

func NewInfluxDBHandler(cfg InfluxDBSettings, timeout time.Duration) (*InfluxDBHandler, error) {
	if cfg.Database == "" {
		return nil, domain.InvalidConfig("influxdb database is required")
	}
	return &InfluxDBHandler{cfg: cfg, client: &http.Client{Timeout: timeout}}, nil
}

func (h *InfluxDBHandler) Name() string { return "influxdb" }

func (h *InfluxDBHandler) SkipFilters() bool { return true }

func (h *InfluxDBHandler) Handle(ctx context.Context, event *domain.Event) error {
	points := influxPoints(event)
	if len(points) == 0 {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.writeURL(), bytes.NewBufferString(points))
	if err != nil {
		return domain.InvalidConfig("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if h.cfg.Username != "" {
		req.SetBasicAuth(h.cfg.Username, h.cfg.Password)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return domain.Classify("influxdb write", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	if resp.StatusCode >= 300 {
		return domain.UnexpectedResponse("influxdb write",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return nil
}

// influxPoints renders the event output in line protocol. Lines without
// three fields or a dotted path are skipped.
func influxPoints(event *domain.Event) string {
	tags := ",host=" + escapeTag(event.Client.Name) + ",ip=" + escapeTag(event.Client.Address)

	var b strings.Builder
	for _, line := range strings.Split(event.Check.Output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 3 {
			continue
		}
		parts := strings.SplitN(fields[0], ".", 2)
		if len(parts) != 2 || parts[1] == "" {
			continue
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		key := strings.ReplaceAll(parts[1], ".", "_")

		b.WriteString(escapeTag(key))
		b.WriteString(tags)
		b.WriteString(" value=")
		b.WriteString(strconv.FormatFloat(value, 'f', -1, 64))
		if _, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
			b.WriteString(" ")
			b.WriteString(fields[2])
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var tagEscaper = strings.NewReplacer(",", `\,`, " ", `\ `, "=", `\=`)

func escapeTag(s string) string {
	return tagEscaper.Replace(s)
}

// SQLMetricsHandler keeps a history row per metric event.
type SQLMetricsHandler struct {
	store storage.MetricStore
}

func NewSQLMetricsHandler(store storage.MetricStore) *SQLMetricsHandler {
	return &SQLMetricsHandler{store: store}
}

func (h *SQLMetricsHandler) Name() string { return "sql-metrics" }

func (h *SQLMetricsHandler) SkipFilters() bool { return true }

func (h *SQLMetricsHandler) Handle(ctx context.Context, event *domain.Event) error {
	record := &storage.MetricRecord{
		ClientID:  event.Client.Name,
		CheckName: event.Check.Name,
		IssuedAt:  event.IssuedAt(),
		Output:    event.Check.Output,
		Status:    event.Check.Status.ExitCode(),
	}
	if err := h.store.Create(ctx, record); err != nil {
		return domain.Classify("store metric", err)
	}
	return nil
}

func (h *SQLMetricsHandler) Close() error {
	h.store.Close()
	return nil
}
