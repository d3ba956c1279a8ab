package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"Probekit/internal/checks"
	"Probekit/internal/collectors"
	"Probekit/internal/config"
	"Probekit/internal/domain"
	"Probekit/internal/handlers"
	"Probekit/internal/runner"
	"Probekit/internal/shared/constants"

	"github.com/spf13/pflag"
)

const (
	binaryName    = "probekit"
	handlerPrefix = "handler-"
)

type globalFlags struct {
	settings string
	debug    bool
}

type timeouter interface {
	Timeout() time.Duration
}

func main() {
	container := GetContainer()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := container.Run(ctx, os.Args, os.Stdin, os.Stdout, os.Stderr)
	stop()

	os.Exit(code)
}

// Run dispatches to the plugin named by the program name, or by the first
// argument when invoked as probekit itself, and returns the exit code.
func (c *Container) Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	name, rest, ok := resolvePlugin(args)
	if !ok {
		c.usage(stderr)
		return domain.StatusUnknown.ExitCode()
	}

	if handler, found := strings.CutPrefix(name, handlerPrefix); found {
		return c.runHandler(ctx, handler, rest, stdin)
	}
	if setup, err := c.Checks.Get(name); err == nil {
		return c.runCheck(ctx, name, setup, rest, stdout)
	}
	if setup, err := c.Collectors.Get(name); err == nil {
		return c.runCollector(ctx, name, setup, rest, stdout)
	}

	c.Logger.Error("unknown plugin", "plugin", name)
	c.usage(stderr)
	return domain.StatusUnknown.ExitCode()
}

func resolvePlugin(args []string) (string, []string, bool) {
	if len(args) == 0 {
		return "", nil, false
	}
	if base := filepath.Base(args[0]); base != binaryName {
		return base, args[1:], true
	}
	if len(args) < 2 || strings.HasPrefix(args[1], "-") {
		return "", nil, false
	}
	return args[1], args[2:], true
}

func (c *Container) runCheck(ctx context.Context, name string, setup checks.Setup, args []string, stdout io.Writer) int {
	var g globalFlags
	fs := newFlagSet(name, &g)
	build := setup(fs, c.checkDeps())
	if err := c.parse(fs, &g, args); err != nil {
		return domain.StatusUnknown.ExitCode()
	}
	if err := applySettings(fs, g.settings, name); err != nil {
		c.Logger.Error("invalid check settings", "check", name, "error", err)
		return domain.StatusUnknown.ExitCode()
	}

	check, err := build()
	if err != nil {
		c.Logger.Error("invalid check configuration", "check", name, "error", err)
		result := domain.Result{Status: domain.StatusOf(err), Message: err.Error()}
		fmt.Fprintln(stdout, result.Line(name))
		return result.Status.ExitCode()
	}

	status := runner.RunCheck(ctx, check, timeoutOf(check, constants.CheckTimeout), stdout, c.Logger)
	return status.ExitCode()
}

func (c *Container) runCollector(ctx context.Context, name string, setup collectors.Setup, args []string, stdout io.Writer) int {
	var g globalFlags
	fs := newFlagSet(name, &g)
	build := setup(fs, c.Stats)
	if err := c.parse(fs, &g, args); err != nil {
		return domain.StatusUnknown.ExitCode()
	}
	if err := applySettings(fs, g.settings, name); err != nil {
		c.Logger.Error("invalid collector settings", "collector", name, "error", err)
		return domain.StatusUnknown.ExitCode()
	}

	collector, err := build()
	if err != nil {
		c.Logger.Error("invalid collector configuration", "collector", name, "error", err)
		return domain.StatusOf(err).ExitCode()
	}

	status := runner.RunCollector(ctx, collector, timeoutOf(collector, constants.CollectorTimeout), stdout, c.Logger)
	return status.ExitCode()
}

func (c *Container) runHandler(ctx context.Context, name string, args []string, stdin io.Reader) int {
	setup, err := c.Handlers.Get(name)
	if err != nil {
		c.Logger.Error("unknown handler", "error", err)
		return domain.StatusUnknown.ExitCode()
	}

	var g globalFlags
	fs := newFlagSet(handlerPrefix+name, &g)
	if err := c.parse(fs, &g, args); err != nil {
		return domain.StatusUnknown.ExitCode()
	}

	loader, err := config.NewLoader(g.settings)
	if err != nil {
		c.Logger.Error("failed to load settings", "error", err)
		return domain.StatusUnknown.ExitCode()
	}
	deps := handlers.Deps{Log: c.Logger, Settings: loader}

	handler, err := setup(ctx, deps)
	if err != nil {
		c.Logger.Error("failed to set up handler", "handler", name, "error", err)
		return domain.StatusOf(err).ExitCode()
	}
	if closer, ok := handler.(io.Closer); ok {
		defer closer.Close()
	}

	var filters []runner.Filter
	if u, ok := handler.(runner.Unfiltered); !ok || !u.SkipFilters() {
		filters, err = handlers.Filters(deps)
		if err != nil {
			c.Logger.Error("failed to set up filters", "handler", name, "error", err)
			return domain.StatusOf(err).ExitCode()
		}
	}

	err = runner.RunHandler(ctx, handler, stdin, filters, timeoutOf(handler, constants.HandlerTimeout), c.Logger)
	return runner.HandlerExitCode(err)
}

func newFlagSet(name string, g *globalFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringVar(&g.settings, "settings", "", "Path to the settings file")
	fs.BoolVar(&g.debug, "debug", false, "Enable debug logging")
	return fs
}

func (c *Container) parse(fs *pflag.FlagSet, g *globalFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if g.debug {
		c.Level.Set(slog.LevelDebug)
	}
	return nil
}

func timeoutOf(plugin any, fallback time.Duration) time.Duration {
	if t, ok := plugin.(timeouter); ok {
		return t.Timeout()
	}
	return fallback
}

func (c *Container) usage(w io.Writer) {
	fmt.Fprintf(w, "usage: %s <plugin> [flags]\n\n", binaryName)
	fmt.Fprintf(w, "checks:\n  %s\n", strings.Join(c.Checks.Names(), "\n  "))
	fmt.Fprintf(w, "collectors:\n  %s\n", strings.Join(c.Collectors.Names(), "\n  "))
	fmt.Fprintf(w, "handlers:\n  %s%s\n", handlerPrefix, strings.Join(c.Handlers.Names(), "\n  "+handlerPrefix))
}
