package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"Probekit/internal/shared/constants"

	kardianos "github.com/kardianos/service"
	"github.com/spf13/pflag"
)

// program adapts the statsd daemon to the service manager lifecycle.
type program struct {
	settings  string
	container *Container
	cancel    context.CancelFunc
	done      chan error
}

func (p *program) Start(_ kardianos.Service) error {
	container, err := GetContainer(p.settings)
	if err != nil {
		return err
	}
	p.container = container

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	container.Watch(ctx)

	d := container.Daemon
	container.Logger.Info("statsd daemon started",
		"udp", d.Listener.UDPAddr().String(),
		"tcp", d.Listener.TCPAddr().String(),
		"handler", container.Config.Statsd.Handler,
	)

	go func() {
		err := d.Run(ctx)
		if err != nil && ctx.Err() == nil {
			container.Logger.Error("statsd daemon failed", "error", err)
			container.Close()
			os.Exit(1)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(_ kardianos.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	defer p.container.Close()

	select {
	case err := <-p.done:
		if err != nil {
			p.container.Logger.Error("statsd daemon stopped with error", "error", err)
			return err
		}
	case <-time.After(constants.ShutdownTimeout):
		return errors.New("timed out waiting for statsd daemon to stop")
	}

	p.container.Logger.Info("statsd daemon stopped")
	return nil
}

func main() {
	fs := pflag.NewFlagSet("statsd", pflag.ExitOnError)
	settings := fs.String("settings", "", "Path to the settings file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: statsd [install|uninstall|run] [--settings path]\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	command := "run"
	if fs.NArg() > 0 {
		command = fs.Arg(0)
	}

	path := *settings
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	manager := newServiceManager(&program{settings: path}, path)

	var err error
	switch command {
	case "install":
		err = manager.Install()
	case "uninstall":
		err = manager.Uninstall()
	case "run":
		err = manager.Run()
	default:
		fs.Usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("statsd command failed", "command", command, "error", err)
		os.Exit(1)
	}
}
