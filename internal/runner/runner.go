package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/graphite"
)

var (
	ErrFiltered      = errors.New("event filtered")
	ErrUnknownPlugin = errors.New("unknown plugin")
)

// RunCheck runs c once under timeout, prints its status line to out and
// returns the status to exit with.
func RunCheck(ctx context.Context, c Check, timeout time.Duration, out io.Writer, log *slog.Logger) domain.Status {
	ctx, cancel := withDeadline(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := c.Run(ctx)
	if err != nil {
		result = failureResult(ctx, err, timeout)
		log.Error("check failed",
			"check", c.Name(),
			"kind", domain.KindOf(err).String(),
			"error", err,
		)
	}

	if !result.Status.Valid() {
		result.Status = domain.StatusUnknown
	}

	log.Debug("check completed",
		"check", c.Name(),
		"status", result.Status.String(),
		"duration", time.Since(start),
	)

	fmt.Fprintln(out, result.Line(c.Name()))
	return result.Status
}

// RunCollector prints every valid sample c returns. Invalid samples are
// logged and dropped.
func RunCollector(ctx context.Context, c Collector, timeout time.Duration, out io.Writer, log *slog.Logger) domain.Status {
	ctx, cancel := withDeadline(ctx, timeout)
	defer cancel()

	samples, err := c.Collect(ctx)
	if err != nil {
		result := failureResult(ctx, err, timeout)
		log.Error("collector failed", "collector", c.Name(), "error", err)
		fmt.Fprintln(out, result.Line(c.Name()))
		return result.Status
	}

	valid := graphite.Filter(samples, log.With("collector", c.Name()))
	if _, err := io.WriteString(out, graphite.Format(valid)); err != nil {
		log.Error("failed to write metrics", "collector", c.Name(), "error", err)
		return domain.StatusUnknown
	}

	log.Debug("collector completed", "collector", c.Name(), "samples", len(valid), "dropped", len(samples)-len(valid))
	return domain.StatusOK
}

// RunHandler decodes an event from in, applies filters and hands the event
// to h. A filtered event returns ErrFiltered.
func RunHandler(ctx context.Context, h Handler, in io.Reader, filters []Filter, timeout time.Duration, log *slog.Logger) error {
	event, err := domain.DecodeEvent(in)
	if err != nil {
		log.Error("failed to read event", "handler", h.Name(), "error", err)
		return err
	}

	log = log.With("handler", h.Name(), "event", event.IncidentKey(), "action", string(event.Action))

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if !skipsFilters(h) {
		for _, f := range filters {
			bail, reason, err := f.Filter(ctx, event)
			if err != nil {
				log.Warn("filter failed, continuing", "filter", f.Name(), "error", err)
				continue
			}
			if bail {
				log.Info("event filtered", "filter", f.Name(), "reason", reason)
				return fmt.Errorf("%w: %s", ErrFiltered, reason)
			}
		}
	}

	if err := h.Handle(ctx, event); err != nil {
		err = domain.Classify(h.Name(), err)
		log.Error("handler failed", "kind", domain.KindOf(err).String(), "error", err)
		return err
	}

	log.Info("event handled")
	return nil
}

// HandlerExitCode maps a RunHandler error to a process exit code.
func HandlerExitCode(err error) int {
	if err == nil || errors.Is(err, ErrFiltered) {
		return 0
	}
	return domain.StatusOf(err).ExitCode()
}

func skipsFilters(h Handler) bool {
	u, ok := h.(Unfiltered)
	return ok && u.SkipFilters()
}

func failureResult(ctx context.Context, err error, timeout time.Duration) domain.Result {
	var de *domain.Error
	if ctx.Err() != nil && !errors.As(err, &de) && domain.KindOf(err) == domain.KindTimeout {
		err = domain.Timeout(fmt.Sprintf("timed out after %s", timeout), err)
	}
	return domain.Result{Status: domain.StatusOf(err), Message: err.Error()}
}

// withDeadline applies timeout to ctx. A zero timeout means no deadline.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
