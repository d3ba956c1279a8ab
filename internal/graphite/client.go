// Package graphite speaks the plaintext `path value timestamp` protocol.
package graphite

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"Probekit/internal/domain"
)

const DefaultTimeout = 3 * time.Second

type Client struct {
	network string
	address string
	timeout time.Duration
}

// NewClient returns a client for a tcp or udp carbon listener.
func NewClient(network, address string, timeout time.Duration) (*Client, error) {
	if network != "tcp" && network != "udp" {
		return nil, domain.InvalidConfig("unsupported graphite network %q", network)
	}
	if address == "" {
		return nil, domain.InvalidConfig("graphite address is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{network: network, address: address, timeout: timeout}, nil
}

func (c *Client) Address() string {
	return c.address
}

// WriteRaw sends payload unchanged, adding a trailing newline if missing.
func (c *Client) WriteRaw(ctx context.Context, payload string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, c.network, c.address)
	if err != nil {
		return domain.Classify("graphite dial", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}

	if _, err := conn.Write([]byte(payload)); err != nil {
		return domain.Classify("graphite write", err)
	}
	return nil
}

// Send writes samples, dropping any with an invalid path.
func (c *Client) Send(ctx context.Context, samples []domain.Sample, log *slog.Logger) (int, error) {
	valid := Filter(samples, log)
	if len(valid) == 0 {
		return 0, nil
	}
	if err := c.WriteRaw(ctx, Format(valid)); err != nil {
		return 0, err
	}
	return len(valid), nil
}

// Filter returns samples with valid paths and logs the rest.
func Filter(samples []domain.Sample, log *slog.Logger) []domain.Sample {
	valid := make([]domain.Sample, 0, len(samples))
	for _, s := range samples {
		if err := s.Validate(); err != nil {
			if log != nil {
				log.Warn("dropping metric sample", "path", s.Path, "error", err)
			}
			continue
		}
		valid = append(valid, s)
	}
	return valid
}

func Format(samples []domain.Sample) string {
	var b strings.Builder
	for _, s := range samples {
		b.WriteString(s.Line())
		b.WriteByte('\n')
	}
	return b.String()
}

// Parse reads metric lines, skipping blank ones. Lines that do not parse are
// returned as errors alongside the samples that did.
func Parse(output string) ([]domain.Sample, []error) {
	var samples []domain.Sample
	var errs []error

	scanner := bufio.NewScanner(strings.NewReader(output))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		s, err := domain.ParseSample(text)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", line, err))
			continue
		}
		samples = append(samples, s)
	}
	return samples, errs
}
