package statsd

import (
	"context"
	"log/slog"
	"time"

	"Probekit/internal/config"
	"Probekit/internal/shared/constants"

	"golang.org/x/sync/errgroup"
)

// Task is extra work the daemon supervises next to the aggregator.
type Task func(ctx context.Context) error

// Daemon runs the aggregator, its listeners, the status server and any
// extra tasks until the context ends or one of them fails.
type Daemon struct {
	Aggregator *Aggregator
	Listener   *Listener
	Status     *StatusServer
	Metrics    *Metrics
	Tasks      []Task

	flushEvery time.Duration
	sendEvery  time.Duration
	log        *slog.Logger
}

// NewDaemon binds the statsd sockets and prepares the status server. A
// status port of 0 disables the status server.
func NewDaemon(cfg *config.Config, sink Sink, log *slog.Logger) (*Daemon, error) {
	metrics := NewMetrics()
	agg := NewAggregator(OptionsFromConfig(cfg), sink, metrics, log)

	listener, err := Listen(cfg.Statsd.Bind, cfg.Statsd.Port, agg, log)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		Aggregator: agg,
		Listener:   listener,
		Metrics:    metrics,
		flushEvery: time.Duration(cfg.Statsd.FlushInterval) * time.Second,
		sendEvery:  time.Duration(cfg.Statsd.SendInterval) * time.Second,
		log:        log,
	}
	if cfg.Status.Port > 0 {
		d.Status = NewStatusServer(StatusConfig{
			Bind: cfg.Status.Bind,
			Port: cfg.Status.Port,
			Mode: cfg.Status.Mode,
		}, agg, metrics, log)
	}
	return d, nil
}

// Reload applies the naming options of a reloaded config. Intervals and
// addresses only change on restart.
func (d *Daemon) Reload(ctx context.Context, cfg *config.Config) {
	if err := d.Aggregator.Reconfigure(ctx, OptionsFromConfig(cfg)); err != nil {
		d.log.Warn("failed to apply reloaded settings", "error", err)
	}
}

func (d *Daemon) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return d.Aggregator.Run(ctx, d.flushEvery, d.sendEvery) })
	g.Go(func() error { return d.Listener.Serve(ctx) })

	if d.Status != nil {
		g.Go(d.Status.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return d.Status.Shutdown(shutdownCtx)
		})
	}

	for _, task := range d.Tasks {
		task := task
		g.Go(func() error { return task(ctx) })
	}

	return g.Wait()
}
