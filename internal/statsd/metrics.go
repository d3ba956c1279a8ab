package statsd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics are the aggregator's own counters, served on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	Lines        *prometheus.CounterVec
	ParseErrors  prometheus.Counter
	InvalidPaths prometheus.Counter
	Flushed      prometheus.Counter
	Sent         prometheus.Counter
	SendErrors   prometheus.Counter
	Pending      prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Lines: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "statsd", Name: "lines_total", Help: "Parsed statsd lines by metric kind."},
			[]string{"kind"},
		),
		ParseErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "statsd", Name: "parse_errors_total", Help: "Lines that could not be parsed."},
		),
		InvalidPaths: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "statsd", Name: "invalid_paths_total", Help: "Flushed samples dropped for an invalid path."},
		),
		Flushed: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "statsd", Name: "flushed_samples_total", Help: "Samples produced by flushes."},
		),
		Sent: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "statsd", Name: "sent_samples_total", Help: "Samples delivered to the sink."},
		),
		SendErrors: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: "statsd", Name: "send_errors_total", Help: "Failed sink deliveries."},
		),
		Pending: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "statsd", Name: "pending_samples", Help: "Samples waiting for the next send."},
		),
	}

	m.Registry.MustRegister(
		m.Lines,
		m.ParseErrors,
		m.InvalidPaths,
		m.Flushed,
		m.Sent,
		m.SendErrors,
		m.Pending,
		collectors.NewGoCollector(),
	)
	return m
}
