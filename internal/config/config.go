package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix       = "PROBEKIT"
	DefaultSettings = "/etc/probekit/settings.json"
)

var ErrSectionMissing = errors.New("settings section not found")

type Config struct {
	Client   ClientConfig   `mapstructure:"client"`
	API      APIConfig      `mapstructure:"api"`
	Statsd   StatsdConfig   `mapstructure:"statsd"`
	Graphite GraphiteConfig `mapstructure:"graphite"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Status   StatusConfig   `mapstructure:"status"`
	TTL      TTLConfig      `mapstructure:"ttl"`
}

// ClientConfig describes the local monitoring client this host runs.
type ClientConfig struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Socket  struct {
		Bind string `mapstructure:"bind"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"socket"`
}

// APIConfig points at the monitoring server API used by the resolve handler
// and the silence filter.
type APIConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

type StatsdConfig struct {
	Bind            string `mapstructure:"bind"`
	Port            int    `mapstructure:"port"`
	FlushInterval   int    `mapstructure:"flush_interval"`
	SendInterval    int    `mapstructure:"send_interval"`
	Percentile      int    `mapstructure:"percentile"`
	AddClientPrefix bool   `mapstructure:"add_client_prefix"`
	PathPrefix      string `mapstructure:"path_prefix"`
	Handler         string `mapstructure:"handler"`
}

type GraphiteConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Reverse bool   `mapstructure:"reverse"`
	Replace string `mapstructure:"replace"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type StatusConfig struct {
	Bind string `mapstructure:"bind"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// TTLConfig drives the stash expiry loop. An interval <= 0 disables it.
type TTLConfig struct {
	Interval int `mapstructure:"interval"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Loader reads the settings file once and serves typed sections from it.
type Loader struct {
	mu sync.RWMutex
	v  *viper.Viper
}

// NewLoader reads path, or the default settings locations when path is empty.
// A missing settings file is not an error: defaults and environment still apply.
func NewLoader(path string) (*Loader, error) {
	_ = godotenv.Load()

	v := viper.New()
	if path == "" {
		path = os.Getenv(EnvPrefix + "_SETTINGS")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.SetConfigType("json")
		v.AddConfigPath("/etc/probekit")
		v.AddConfigPath("configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
			slog.Warn("settings file not found, using defaults", "path", path)
		} else {
			return nil, fmt.Errorf("error reading settings file: %w", err)
		}
	}

	return &Loader{v: v}, nil
}

func setDefaults(v *viper.Viper) {
	hostname, _ := os.Hostname()

	// client defaults
	v.SetDefault("client.name", hostname)
	v.SetDefault("client.address", "127.0.0.1")
	v.SetDefault("client.socket.bind", "127.0.0.1")
	v.SetDefault("client.socket.port", 3030)

	// api defaults
	v.SetDefault("api.host", "localhost")
	v.SetDefault("api.port", 4567)
	v.SetDefault("api.user", "")
	v.SetDefault("api.password", "")

	// statsd defaults
	v.SetDefault("statsd.bind", "127.0.0.1")
	v.SetDefault("statsd.port", 8125)
	v.SetDefault("statsd.flush_interval", 10)
	v.SetDefault("statsd.send_interval", 30)
	v.SetDefault("statsd.percentile", 90)
	v.SetDefault("statsd.add_client_prefix", true)
	v.SetDefault("statsd.path_prefix", "statsd")
	v.SetDefault("statsd.handler", "graphite")

	// graphite defaults
	v.SetDefault("graphite.host", "localhost")
	v.SetDefault("graphite.port", 2003)
	v.SetDefault("graphite.reverse", false)
	v.SetDefault("graphite.replace", "_")

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")

	// status server defaults
	v.SetDefault("status.bind", "127.0.0.1")
	v.SetDefault("status.port", 8126)
	v.SetDefault("status.mode", "release")

	// ttl expiry defaults
	v.SetDefault("ttl.interval", 60)
}

func (l *Loader) Load() (*Config, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var config Config
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings, %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("settings validation failed, %w", err)
	}

	return &config, nil
}

// Section decodes the settings block keyed by name into out. Fields absent
// from the block keep the values out already holds.
func (l *Loader) Section(name string, out interface{}) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.v.IsSet(name) {
		return fmt.Errorf("%w: %s", ErrSectionMissing, name)
	}
	if err := l.v.UnmarshalKey(name, out); err != nil {
		return fmt.Errorf("failed to decode %s settings: %w", name, err)
	}
	return nil
}

// Watch reloads the settings file on change and hands valid configs to fn.
func (l *Loader) Watch(log *slog.Logger, fn func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := l.Load()
		if err != nil {
			log.Error("failed to reload settings", "file", e.Name, "error", err)
			return
		}
		log.Info("settings reloaded", "file", e.Name)
		fn(cfg)
	})
	l.v.WatchConfig()
}

func validateConfig(cfg *Config) error {
	if cfg.Statsd.Port < 1 || cfg.Statsd.Port > 65535 {
		return fmt.Errorf("invalid statsd port %d", cfg.Statsd.Port)
	}

	if cfg.Statsd.FlushInterval < 1 {
		return fmt.Errorf("invalid statsd flush interval %d", cfg.Statsd.FlushInterval)
	}

	if cfg.Statsd.SendInterval < 1 {
		return fmt.Errorf("invalid statsd send interval %d", cfg.Statsd.SendInterval)
	}

	if cfg.Statsd.Percentile < 1 || cfg.Statsd.Percentile > 100 {
		return fmt.Errorf("invalid statsd percentile %d", cfg.Statsd.Percentile)
	}

	if cfg.Statsd.Handler != "graphite" && cfg.Statsd.Handler != "stdout" {
		return fmt.Errorf("invalid statsd handler %s", cfg.Statsd.Handler)
	}

	if cfg.Status.Mode != "debug" && cfg.Status.Mode != "release" {
		return fmt.Errorf("invalid status server mode %s", cfg.Status.Mode)
	}

	if cfg.Client.Name == "" {
		return errors.New("client name is required")
	}

	return nil
}

func (a *APIConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", a.Host, a.Port)
}

func (g *GraphiteConfig) Address() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

func (c *ClientConfig) SocketAddress() string {
	return fmt.Sprintf("%s:%d", c.Socket.Bind, c.Socket.Port)
}

// GetDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            fmt.Sprintf("%s:%d", r.Host, r.Port),
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}

func (d *DatabaseConfig) BindFlags(fs *pflag.FlagSet, database string) {
	fs.StringVarP(&d.User, "user", "u", "postgres", "Postgres User")
	fs.StringVarP(&d.Password, "password", "p", "", "Postgres Password")
	fs.StringVarP(&d.Host, "hostname", "h", "localhost", "Hostname to login to")
	fs.StringVarP(&d.DBName, "database", "d", database, "Database to connect to")
	fs.IntVarP(&d.Port, "port", "P", 5432, "Database port")
	fs.StringVar(&d.SSLMode, "sslmode", "prefer", "Postgres sslmode")
}

func (r *RedisConfig) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&r.Host, "host", "h", "127.0.0.1", "Redis Host to connect to")
	fs.IntVarP(&r.Port, "port", "p", 6379, "Redis Port to connect to")
	fs.StringVarP(&r.Password, "password", "P", "", "Redis Password to connect with")
	fs.IntVarP(&r.DB, "database", "n", 0, "Redis database number to connect to")
}
