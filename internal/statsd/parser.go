// Package statsd aggregates statsd counters, gauges and timers and emits
// them as graphite samples.
package statsd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	Counter Kind = iota
	Gauge
	Timer
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Timer:
		return "timer"
	default:
		return "unknown"
	}
}

var ErrMalformed = errors.New("malformed statsd line")

// Metric is one parsed statsd line. Value is already scaled by the sample
// rate for counters.
type Metric struct {
	Name  string
	Kind  Kind
	Value float64
}

// Parse reads `name:value|type[|@rate]`. The rate may also be attached to
// the type as `c@0.1`.
func Parse(line string) (Metric, error) {
	line = strings.TrimSpace(line)
	nameValue, rest, ok := strings.Cut(line, "|")
	if !ok {
		return Metric{}, fmt.Errorf("%w: %q has no type", ErrMalformed, line)
	}
	name, raw, ok := strings.Cut(nameValue, ":")
	if !ok || name == "" || raw == "" {
		return Metric{}, fmt.Errorf("%w: %q has no value", ErrMalformed, line)
	}

	typ, rate, err := splitRate(rest)
	if err != nil {
		return Metric{}, err
	}

	switch {
	case typ == "g":
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Metric{}, fmt.Errorf("%w: gauge %s value %q", ErrMalformed, name, raw)
		}
		return Metric{Name: name, Kind: Gauge, Value: value}, nil

	case strings.HasPrefix(typ, "c"), typ == "m":
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Metric{}, fmt.Errorf("%w: counter %s value %q", ErrMalformed, name, raw)
		}
		return Metric{Name: name, Kind: Counter, Value: float64(value) / rate}, nil

	case typ == "ms", typ == "h":
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Metric{}, fmt.Errorf("%w: timer %s value %q", ErrMalformed, name, raw)
		}
		return Metric{Name: name, Kind: Timer, Value: value}, nil

	default:
		return Metric{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, typ)
	}
}

func splitRate(rest string) (string, float64, error) {
	typ, sample, _ := strings.Cut(rest, "|")
	if t, r, ok := strings.Cut(typ, "@"); ok {
		typ, sample = t, "@"+r
	}

	rate := 1.0
	if sample != "" {
		raw := strings.TrimPrefix(sample, "@")
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 {
			return "", 0, fmt.Errorf("%w: sample rate %q", ErrMalformed, sample)
		}
		rate = parsed
	}
	return typ, rate, nil
}
