package main

import (
	"log/slog"
	"os"

	"Probekit/internal/checks"
	"Probekit/internal/collectors"
	"Probekit/internal/handlers"
	"Probekit/internal/sysstat"
)

type Container struct {
	Logger     *slog.Logger
	Level      *slog.LevelVar
	Stats      sysstat.Source
	Checks     *checks.Factory
	Collectors *collectors.Factory
	Handlers   *handlers.Factory
}

func GetContainer() *Container {
	container := &Container{}

	container.initLogger()
	container.initFactories()

	return container
}

// initLogger writes JSON logs to stderr; stdout carries plugin output.
func (c *Container) initLogger() {
	c.Level = new(slog.LevelVar)
	if os.Getenv("DEBUG") == "true" {
		c.Level.Set(slog.LevelDebug)
	}

	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: c.Level,
	})

	c.Logger = slog.New(handler)
}

func (c *Container) initFactories() {
	c.Stats = sysstat.Host{}
	c.Checks = checks.NewFactory()
	c.Collectors = collectors.NewFactory()
	c.Handlers = handlers.NewFactory()
}

func (c *Container) checkDeps() checks.Deps {
	return checks.Deps{Log: c.Logger, Stats: c.Stats}
}
