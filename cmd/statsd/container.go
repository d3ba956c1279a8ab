package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"Probekit/internal/clients"
	"Probekit/internal/config"
	"Probekit/internal/handlers"
	"Probekit/internal/shared/constants"
	"Probekit/internal/statsd"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Container struct {
	Config *config.Config
	Loader *config.Loader
	Logger *slog.Logger
	Daemon *statsd.Daemon

	rotator *lumberjack.Logger
}

func GetContainer(settings string) (*Container, error) {
	container := &Container{}

	if err := container.initConfig(settings); err != nil {
		return nil, err
	}
	container.initLogger()
	if err := container.initDaemon(); err != nil {
		container.Close()
		return nil, err
	}

	return container, nil
}

func (c *Container) initConfig(settings string) error {
	loader, err := config.NewLoader(settings)
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	c.Loader = loader
	c.Config = cfg
	return nil
}

// initLogger logs JSON to stdout and, when logging.file is set, to a
// rotated file as well.
func (c *Container) initLogger() {
	var writer io.Writer = os.Stdout
	if c.Config.Logging.File != "" {
		c.rotator = &lumberjack.Logger{
			Filename:   c.Config.Logging.File,
			MaxSize:    10, // MB
			MaxBackups: 3,
			Compress:   false,
		}
		writer = io.MultiWriter(os.Stdout, c.rotator)
	}

	handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: logLevel(c.Config.Logging.Level),
	})

	c.Logger = slog.New(handler)
	slog.SetDefault(c.Logger)
}

func (c *Container) initDaemon() error {
	sink, err := statsd.NewSink(c.Config, os.Stdout, c.Logger)
	if err != nil {
		return err
	}

	daemon, err := statsd.NewDaemon(c.Config, sink, c.Logger)
	if err != nil {
		return err
	}

	if c.Config.TTL.Interval > 0 {
		api := clients.NewAPIClient(c.Config.API, constants.APITimeout)
		expirer := handlers.NewTTLExpirer(api, c.Logger.With("component", "ttl"))
		interval := time.Duration(c.Config.TTL.Interval) * time.Second
		daemon.Tasks = append(daemon.Tasks, func(ctx context.Context) error {
			return expirer.Run(ctx, interval)
		})
	}

	c.Daemon = daemon
	return nil
}

// Watch applies settings file changes to the running daemon.
func (c *Container) Watch(ctx context.Context) {
	c.Loader.Watch(c.Logger, func(cfg *config.Config) {
		c.Daemon.Reload(ctx, cfg)
	})
}

func (c *Container) Close() {
	if c.rotator != nil {
		_ = c.rotator.Close()
	}
}

func logLevel(level string) slog.Level {
	if os.Getenv("DEBUG") == "true" {
		return slog.LevelDebug
	}
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
