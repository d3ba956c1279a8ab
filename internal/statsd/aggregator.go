package statsd

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/config"
	"Probekit/internal/domain"
)

const (
	lineBuffer  = 1024
	sendTimeout = 5 * time.Second
)

var ErrStopped = errors.New("aggregator stopped")

// Options control how flushed samples are named.
type Options struct {
	ClientName      string `json:"client_name"`
	AddClientPrefix bool   `json:"add_client_prefix"`
	PathPrefix      string `json:"path_prefix"`
	Percentile      int    `json:"percentile"`
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ClientName:      cfg.Client.Name,
		AddClientPrefix: cfg.Statsd.AddClientPrefix,
		PathPrefix:      cfg.Statsd.PathPrefix,
		Percentile:      cfg.Statsd.Percentile,
	}
}

// Sink receives flushed samples on every send interval.
type Sink interface {
	Send(ctx context.Context, samples []domain.Sample) error
}

// Snapshot describes the aggregator state at one point in time.
type Snapshot struct {
	Gauges   int     `json:"gauges"`
	Counters int     `json:"counters"`
	Timers   int     `json:"timers"`
	Pending  int     `json:"pending"`
	Options  Options `json:"options"`
}

// Aggregator owns all statsd state. Only the goroutine running Run touches
// the maps and the pending slice; everything else talks to it over channels.
type Aggregator struct {
	lines   chan string
	reconf  chan Options
	queries chan chan Snapshot
	done    chan struct{}

	sink    Sink
	metrics *Metrics
	log     *slog.Logger
	now     func() time.Time

	opts     Options
	gauges   map[string]float64
	counters map[string]float64
	timers   map[string][]float64
	pending  []domain.Sample
}

func NewAggregator(opts Options, sink Sink, metrics *Metrics, log *slog.Logger) *Aggregator {
	return &Aggregator{
		lines:    make(chan string, lineBuffer),
		reconf:   make(chan Options),
		queries:  make(chan chan Snapshot),
		done:     make(chan struct{}),
		sink:     sink,
		metrics:  metrics,
		log:      log,
		now:      time.Now,
		opts:     opts,
		gauges:   make(map[string]float64),
		counters: make(map[string]float64),
		timers:   make(map[string][]float64),
	}
}

// Submit queues every line of packet for aggregation.
func (a *Aggregator) Submit(ctx context.Context, packet string) error {
	for _, line := range strings.Split(packet, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		select {
		case a.lines <- line:
		case <-a.done:
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Reconfigure swaps naming options without dropping aggregated values.
func (a *Aggregator) Reconfigure(ctx context.Context, opts Options) error {
	select {
	case a.reconf <- opts:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Aggregator) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	select {
	case a.queries <- reply:
	case <-a.done:
		return Snapshot{}, ErrStopped
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
	return <-reply, nil
}

// Run aggregates until ctx is cancelled, then flushes and sends once more.
func (a *Aggregator) Run(ctx context.Context, flushEvery, sendEvery time.Duration) error {
	defer close(a.done)

	flush := time.NewTicker(flushEvery)
	defer flush.Stop()
	send := time.NewTicker(sendEvery)
	defer send.Stop()

	a.log.Info("statsd aggregator started", "flush_interval", flushEvery, "send_interval", sendEvery)

	for {
		select {
		case <-ctx.Done():
			a.drain()
			a.flush()
			sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			a.send(sendCtx)
			cancel()
			a.log.Info("statsd aggregator stopped")
			return nil
		case line := <-a.lines:
			a.ingest(line)
		case opts := <-a.reconf:
			a.log.Info("statsd options changed", "path_prefix", opts.PathPrefix, "percentile", opts.Percentile)
			a.opts = opts
		case reply := <-a.queries:
			a.drain()
			reply <- a.snapshot()
		case <-flush.C:
			a.flush()
		case <-send.C:
			a.send(ctx)
		}
	}
}

// drain ingests lines already buffered when Run is asked to stop.
func (a *Aggregator) drain() {
	for {
		select {
		case line := <-a.lines:
			a.ingest(line)
		default:
			return
		}
	}
}

func (a *Aggregator) ingest(line string) {
	m, err := Parse(line)
	if err != nil {
		a.metrics.ParseErrors.Inc()
		a.log.Error("statsd parser error", "line", line, "error", err)
		return
	}
	a.metrics.Lines.WithLabelValues(m.Kind.String()).Inc()

	switch m.Kind {
	case Gauge:
		a.gauges[m.Name] = m.Value
	case Counter:
		a.counters[m.Name] += m.Value
	case Timer:
		a.timers[m.Name] = append(a.timers[m.Name], m.Value)
	}
}

func (a *Aggregator) flush() {
	before := len(a.pending)
	ts := a.now().Unix()

	for _, name := range sortedKeys(a.gauges) {
		a.add(ts, a.gauges[name], "gauges", name)
	}
	clear(a.gauges)

	for _, name := range sortedKeys(a.counters) {
		a.add(ts, a.counters[name], "counters", name)
	}
	clear(a.counters)

	pctLabel := "upper_" + strconv.Itoa(a.opts.Percentile)
	for _, name := range sortedKeys(a.timers) {
		stats := timerStats(a.timers[name], a.opts.Percentile)
		a.add(ts, stats.Lower, "timers", name, "lower")
		a.add(ts, stats.Mean, "timers", name, "mean")
		a.add(ts, stats.Upper, "timers", name, "upper")
		a.add(ts, stats.UpperPct, "timers", name, pctLabel)
	}
	clear(a.timers)

	flushed := len(a.pending) - before
	a.metrics.Flushed.Add(float64(flushed))
	a.metrics.Pending.Set(float64(len(a.pending)))
	a.log.Debug("flushed statsd metrics", "samples", flushed)
}

func (a *Aggregator) add(ts int64, value float64, parts ...string) {
	segments := make([]string, 0, len(parts)+2)
	if a.opts.AddClientPrefix {
		segments = append(segments, a.opts.ClientName)
	}
	segments = append(segments, a.opts.PathPrefix)
	segments = append(segments, parts...)

	sample := domain.Sample{Path: domain.JoinPath(segments...), Value: value, Timestamp: ts}
	if err := sample.Validate(); err != nil {
		a.metrics.InvalidPaths.Inc()
		a.log.Info("invalid statsd metric", "path", sample.Path, "value", value, "error", err)
		return
	}
	a.pending = append(a.pending, sample)
}

// send hands pending samples to the sink. They are dropped on failure.
func (a *Aggregator) send(ctx context.Context) {
	if len(a.pending) == 0 {
		return
	}
	batch := a.pending
	a.pending = nil
	a.metrics.Pending.Set(0)

	if err := a.sink.Send(ctx, batch); err != nil {
		a.metrics.SendErrors.Inc()
		a.log.Error("failed to send statsd metrics", "samples", len(batch), "error", err)
		return
	}
	a.metrics.Sent.Add(float64(len(batch)))
	a.log.Info("statsd collected metrics", "count", len(batch))
}

func (a *Aggregator) snapshot() Snapshot {
	return Snapshot{
		Gauges:   len(a.gauges),
		Counters: len(a.counters),
		Timers:   len(a.timers),
		Pending:  len(a.pending),
		Options:  a.opts,
	}
}

type TimerStats struct {
	Lower    float64
	Mean     float64
	Upper    float64
	UpperPct float64
}

// timerStats sorts values and summarises them. Mean and UpperPct only cover
// the values inside the percentile.
func timerStats(values []float64, percentile int) TimerStats {
	slices.Sort(values)
	n := len(values)
	stats := TimerStats{Lower: values[0], Upper: values[n-1], Mean: values[0], UpperPct: values[0]}
	if n == 1 {
		return stats
	}

	thresholdIndex := float64(100-percentile) / 100.0 * float64(n)
	count := n - int(math.Round(thresholdIndex))
	if count < 1 {
		count = 1
	}
	within := values[:count]

	sum := 0.0
	for _, v := range within {
		sum += v
	}
	stats.UpperPct = within[count-1]
	stats.Mean = sum / float64(count)
	return stats
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
