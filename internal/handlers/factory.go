package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"Probekit/internal/clients"
	"Probekit/internal/config"
	"Probekit/internal/domain"
	"Probekit/internal/graphite"
	"Probekit/internal/runner"
	"Probekit/internal/shared/constants"
	"Probekit/internal/storage"
)

type Deps struct {
	Log      *slog.Logger
	Settings *config.Loader
}

// Setup builds a handler from its settings section.
type Setup func(ctx context.Context, deps Deps) (runner.Handler, error)

type Factory struct {
	setups map[string]Setup
}

func NewFactory() *Factory {
	return &Factory{setups: map[string]Setup{
		"slack":       setupSlack,
		"pagerduty":   setupPagerduty,
		"opsgenie":    setupOpsgenie,
		"mailer":      setupMailer,
		"logstash":    setupLogstash,
		"graphite":    setupGraphite,
		"influxdb":    setupInfluxDB,
		"sql-metrics": setupSQLMetrics,
		"resolve":     setupResolve,
		"ttl":         setupTTL,
	}}
}

func (f *Factory) Get(name string) (Setup, error) {
	setup, ok := f.setups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (valid handlers: %s)", runner.ErrUnknownPlugin, name, strings.Join(f.Names(), ", "))
	}
	return setup, nil
}

func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.setups))
	for name := range f.setups {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Filters returns the event filters backed by the monitoring API settings.
func Filters(deps Deps) ([]runner.Filter, error) {
	cfg, err := deps.Settings.Load()
	if err != nil {
		return nil, domain.InvalidConfig("%v", err)
	}
	return DefaultFilters(clients.NewAPIClient(cfg.API, constants.APITimeout)), nil
}

func section(deps Deps, name string, out interface{}) error {
	if err := deps.Settings.Section(name, out); err != nil {
		return domain.InvalidConfig("%v", err)
	}
	return nil
}

// optionalSection is section for handlers that can run on defaults alone.
func optionalSection(deps Deps, name string, out interface{}) error {
	err := deps.Settings.Section(name, out)
	if errors.Is(err, config.ErrSectionMissing) {
		return nil
	}
	if err != nil {
		return domain.InvalidConfig("%v", err)
	}
	return nil
}

func setupSlack(_ context.Context, deps Deps) (runner.Handler, error) {
	var cfg SlackSettings
	if err := section(deps, "slack", &cfg); err != nil {
		return nil, err
	}
	return NewSlackHandler(cfg, constants.HandlerTimeout)
}

func setupPagerduty(_ context.Context, deps Deps) (runner.Handler, error) {
	var cfg PagerdutySettings
	if err := section(deps, "pagerduty", &cfg); err != nil {
		return nil, err
	}
	return NewPagerdutyHandler(cfg)
}

func setupOpsgenie(_ context.Context, deps Deps) (runner.Handler, error) {
	var cfg OpsgenieSettings
	if err := section(deps, "opsgenie", &cfg); err != nil {
		return nil, err
	}
	return NewOpsgenieHandler(cfg)
}

func setupMailer(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg := DefaultMailerSettings()
	if err := section(deps, "mailer", &cfg); err != nil {
		return nil, err
	}
	return NewMailerHandler(cfg)
}

func setupLogstash(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg := DefaultLogstashSettings()
	if err := section(deps, "logstash", &cfg); err != nil {
		return nil, err
	}

	source, _ := os.Hostname()
	if cfg.Output != "redis" {
		return NewLogstashHandler(cfg, nil, source)
	}

	queue, err := storage.NewRedisQueue(&config.RedisConfig{Host: cfg.Server, Port: cfg.Port}, deps.Log)
	if err != nil {
		return nil, domain.Classify("logstash redis", err)
	}
	return NewLogstashHandler(cfg, queue, source)
}

func setupGraphite(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg, err := deps.Settings.Load()
	if err != nil {
		return nil, domain.InvalidConfig("%v", err)
	}
	client, err := graphite.NewClient("tcp", cfg.Graphite.Address(), graphite.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	mutator := graphite.NewMutator(cfg.Graphite.Reverse, cfg.Graphite.Replace)
	return NewGraphiteHandler(client, mutator, deps.Log), nil
}

func setupInfluxDB(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg := DefaultInfluxDBSettings()
	if err := section(deps, "influxdb", &cfg); err != nil {
		return nil, err
	}
	return NewInfluxDBHandler(cfg, constants.HandlerTimeout)
}

func setupSQLMetrics(ctx context.Context, deps Deps) (runner.Handler, error) {
	cfg := config.DatabaseConfig{
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "sensumetrics",
		SSLMode: "prefer",
	}
	if err := optionalSection(deps, "sql_metrics", &cfg); err != nil {
		return nil, err
	}

	pool, err := storage.NewPostgresPool(ctx, &cfg, deps.Log)
	if err != nil {
		return nil, domain.Classify("sql-metrics database", err)
	}
	if err := storage.EnsureMetricsSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, domain.Classify("sql-metrics schema", err)
	}
	return NewSQLMetricsHandler(storage.NewMetricStore(pool)), nil
}

func setupResolve(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg, err := deps.Settings.Load()
	if err != nil {
		return nil, domain.InvalidConfig("%v", err)
	}
	return NewResolveHandler(clients.NewAPIClient(cfg.API, constants.APITimeout)), nil
}

func setupTTL(_ context.Context, deps Deps) (runner.Handler, error) {
	cfg, err := deps.Settings.Load()
	if err != nil {
		return nil, domain.InvalidConfig("%v", err)
	}
	return NewTTLHandler(clients.NewAPIClient(cfg.API, constants.APITimeout), deps.Log), nil
}
