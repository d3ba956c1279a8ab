package collectors

import (
	"fmt"
	"slices"
	"strings"

	"Probekit/internal/runner"
	"Probekit/internal/sysstat"

	"github.com/spf13/pflag"
)

// Setup binds a collector's flags to fs and returns the constructor to call
// once the flags are parsed.
type Setup func(fs *pflag.FlagSet, stats sysstat.Source) func() (runner.Collector, error)

type Factory struct {
	setups map[string]Setup
}

func NewFactory() *Factory {
	return &Factory{setups: map[string]Setup{
		"load-metrics": func(fs *pflag.FlagSet, stats sysstat.Source) func() (runner.Collector, error) {
			var cfg LoadConfig
			cfg.Bind(fs)
			return func() (runner.Collector, error) { return NewLoadCollector(cfg, stats), nil }
		},
		"memory-metrics": func(fs *pflag.FlagSet, stats sysstat.Source) func() (runner.Collector, error) {
			var cfg MemoryConfig
			cfg.Bind(fs)
			return func() (runner.Collector, error) { return NewMemoryCollector(cfg, stats), nil }
		},
		"disk-usage-metrics": func(fs *pflag.FlagSet, stats sysstat.Source) func() (runner.Collector, error) {
			var cfg DiskUsageConfig
			cfg.Bind(fs)
			return func() (runner.Collector, error) { return NewDiskUsageCollector(cfg, stats) }
		},
		"postgres-connections-metric": func(fs *pflag.FlagSet, _ sysstat.Source) func() (runner.Collector, error) {
			var cfg PostgresConnectionsConfig
			cfg.Bind(fs)
			return func() (runner.Collector, error) { return NewPostgresConnectionsCollector(cfg), nil }
		},
		"redis-metrics": func(fs *pflag.FlagSet, _ sysstat.Source) func() (runner.Collector, error) {
			var cfg RedisMetricsConfig
			cfg.Bind(fs)
			return func() (runner.Collector, error) { return NewRedisMetricsCollector(cfg), nil }
		},
	}}
}

func (f *Factory) Get(name string) (Setup, error) {
	setup, ok := f.setups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (valid collectors: %s)", runner.ErrUnknownPlugin, name, strings.Join(f.Names(), ", "))
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
