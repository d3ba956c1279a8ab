package statsd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"Probekit/internal/config"
	"Probekit/internal/domain"
	"Probekit/internal/graphite"
)

// GraphiteSink relays samples to carbon over TCP.
type GraphiteSink struct {
	client *graphite.Client
	log    *slog.Logger
}

func NewGraphiteSink(client *graphite.Client, log *slog.Logger) *GraphiteSink {
	return &GraphiteSink{client: client, log: log}
}

func (s *GraphiteSink) Send(ctx context.Context, samples []domain.Sample) error {
	_, err := s.client.Send(ctx, samples, s.log)
	return err
}

// WriterSink prints samples in the line protocol, one per line.
type WriterSink struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterSink(out io.Writer) *WriterSink {
	return &WriterSink{out: out}
}

func (s *WriterSink) Send(ctx context.Context, samples []domain.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.out, graphite.Format(samples)); err != nil {
		return fmt.Errorf("failed to write samples: %w", err)
	}
	return nil
}

// NewSink picks the sink named by the statsd handler setting.
func NewSink(cfg *config.Config, stdout io.Writer, log *slog.Logger) (Sink, error) {
	switch cfg.Statsd.Handler {
	case "graphite":
		client, err := graphite.NewClient("tcp", cfg.Graphite.Address(), graphite.DefaultTimeout)
		if err != nil {
			return nil, err
		}
		return NewGraphiteSink(client, log), nil
	case "stdout":
		return NewWriterSink(stdout), nil
	default:
		return nil, domain.InvalidConfig("unsupported statsd handler %q", cfg.Statsd.Handler)
	}
}
