package checks

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"Probekit/internal/config"
	"Probekit/internal/runner"
	"Probekit/internal/sysstat"

	"github.com/spf13/pflag"
)

// Deps are the shared collaborators a check may need at construction.
type Deps struct {
	Log   *slog.Logger
	Stats sysstat.Source
}

// Setup binds a check's flags to fs and returns the constructor to call
// once the flags are parsed.
type Setup func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error)

type Factory struct {
	setups map[string]Setup
}

func NewFactory() *Factory {
	f := &Factory{setups: make(map[string]Setup)}

	f.Register("check-http", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg HTTPConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewHTTPCheck(cfg) }
	})
	f.Register("check-banner", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg BannerConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewBannerCheck(cfg) }
	})
	f.Register("check-dns", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg DNSConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewDNSCheck(cfg, deps.Log) }
	})
	f.Register("check-graphite-data", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg GraphiteDataConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewGraphiteDataCheck(cfg) }
	})
	f.Register("check-redis-ping", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg config.RedisConfig
		cfg.BindFlags(fs)
		return func() (runner.Check, error) { return NewRedisPingCheck(cfg), nil }
	})
	f.Register("check-redis-list-length", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg RedisListLengthConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewRedisListLengthCheck(cfg) }
	})
	f.Register("check-redis-memory", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg RedisMemoryConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewRedisMemoryCheck(cfg) }
	})
	f.Register("check-postgres-alive", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg config.DatabaseConfig
		cfg.BindFlags(fs, "test")
		return func() (runner.Check, error) { return NewPostgresAliveCheck(cfg), nil }
	})
	f.Register("check-consul", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg ConsulConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewConsulCheck(cfg) }
	})
	f.Register("check-docker-containers", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg DockerContainersConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewDockerContainersCheck(cfg) }
	})
	f.Register("check-rabbitmq-drain-time", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg RabbitMQDrainConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewRabbitMQDrainCheck(cfg) }
	})
	f.Register("check-load", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg LoadConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewLoadCheck(cfg, deps.Stats) }
	})
	f.Register("check-ram", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg RAMConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewRAMCheck(cfg, deps.Stats) }
	})
	f.Register("check-disk", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg DiskConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewDiskCheck(cfg, deps.Stats) }
	})
	f.Register("check-cpu", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg CPUConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewCPUCheck(cfg, deps.Stats) }
	})
	f.Register("check-cmd", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg CmdConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewCmdCheck(cfg) }
	})
	f.Register("check-mtime", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg MtimeConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewMtimeCheck(cfg) }
	})
	f.Register("check-dir-count", func(fs *pflag.FlagSet, _ Deps) func() (runner.Check, error) {
		var cfg DirCountConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewDirCountCheck(cfg) }
	})
	f.Register("check-cucumber", func(fs *pflag.FlagSet, deps Deps) func() (runner.Check, error) {
		var cfg CucumberConfig
		cfg.Bind(fs)
		return func() (runner.Check, error) { return NewCucumberCheck(cfg, deps.Log) }
	})

	return f
}

func (f *Factory) Register(name string, setup Setup) {
	f.setups[name] = setup
}

func (f *Factory) Get(name string) (Setup, error) {
	setup, ok := f.setups[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (valid checks: %s)", runner.ErrUnknownPlugin, name, strings.Join(f.Names(), ", "))
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
