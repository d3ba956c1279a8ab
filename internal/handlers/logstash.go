package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/storage"
)

type LogstashSettings struct {
	Server string `mapstructure:"server"`
	Port   int    `mapstructure:"port"`
	List   string `mapstructure:"list"`
	Type   string `mapstructure:"type"`
	// Output is "redis" (LPUSH onto List) or "udp" (one datagram per event).
	Output string `mapstructure:"output"`
}

func DefaultLogstashSettings() LogstashSettings {
	return LogstashSettings{
		Server: "localhost",
		Port:   6379,
		List:   "logstash",
		Output: "redis",
	}
}

func (s LogstashSettings) Address() string {
	return net.JoinHostPort(s.Server, strconv.Itoa(s.Port))
}

type logstashMessage struct {
	Timestamp   string        `json:"@timestamp"`
	Version     int           `json:"@version"`
	Source      string        `json:"source"`
	Tags        []string      `json:"tags"`
	Message     string        `json:"message"`
	Host        string        `json:"host"`
	Issued      int64         `json:"timestamp"`
	Address     string        `json:"address"`
	CheckName   string        `json:"check_name"`
	Command     string        `json:"command"`
	Status      domain.Status `json:"status"`
	Flapping    bool          `json:"flapping"`
	Occurrences int           `json:"occurrences"`
	Action      domain.Action `json:"action"`
	Type        string        `json:"type,omitempty"`
}

// LogstashHandler ships events as logstash JSON documents, either onto a
// redis list or over UDP.
type LogstashHandler struct {
	cfg    LogstashSettings
	queue  storage.Queue
	source string
	now    func() time.Time
}

// NewLogstashHandler needs queue only for the redis output.
func NewLogstashHandler(cfg LogstashSettings, queue storage.Queue, source string) (*LogstashHandler, error) {
	switch cfg.Output {
	case "redis":
		if queue == nil {
			return nil, domain.InvalidConfig("logstash redis output needs a queue")
		}
		if cfg.List == "" {
			return nil, domain.InvalidConfig("logstash list is required")
		}
	case "udp":
		if cfg.Server == "" || cfg.Port == 0 {
			return nil, domain.InvalidConfig("logstash server and port are required")
		}
	default:
		return nil, domain.InvalidConfig("unsupported logstash output %q", cfg.Output)
	}
	return &LogstashHandler{cfg: cfg, queue: queue, source: source, now: time.Now}, nil
}

func (h *LogstashHandler) Name() string { return "logstash" }

func (h *LogstashHandler) Handle(ctx context.Context, event *domain.Event) error {
	msg := h.message(event)
	if h.cfg.Output == "udp" {
		return h.sendUDP(ctx, msg)
	}
	return h.queue.Push(ctx, h.cfg.List, msg)
}

func (h *LogstashHandler) Close() error {
	if h.queue == nil {
		return nil
	}
	return h.queue.Close()
}

func (h *LogstashHandler) message(event *domain.Event) logstashMessage {
	tag := "sensu-ALERT"
	if event.IsResolve() {
		tag = "sensu-RESOLVE"
	}
	return logstashMessage{
		Timestamp:   h.now().UTC().Format(time.RFC3339),
		Version:     1,
		Source:      h.source,
		Tags:        []string{tag},
		Message:     event.Check.Output,
		Host:        event.Client.Name,
		Issued:      event.Check.Issued,
		Address:     event.Client.Address,
		CheckName:   event.Check.Name,
		Command:     event.Check.Command,
		Status:      event.Check.Status,
		Flapping:    event.Check.Flapping,
		Occurrences: event.Occurrences,
		Action:      event.Action,
		Type:        h.cfg.Type,
	}
}

func (h *LogstashHandler) sendUDP(ctx context.Context, msg logstashMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal logstash message: %w", err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", h.cfg.Address())
	if err != nil {
		return domain.Classify("logstash dial", err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return domain.Classify("logstash write", err)
	}
	return nil
}
