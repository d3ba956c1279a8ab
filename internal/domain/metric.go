package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var metricPathPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Sample is one point of the `path value timestamp` line protocol.
type Sample struct {
	Path      string
	Value     float64
	Timestamp int64
}

func NewSample(path string, value float64, at time.Time) Sample {
	return Sample{Path: path, Value: value, Timestamp: at.Unix()}
}

func ValidMetricPath(path string) bool {
	return metricPathPattern.MatchString(path)
}

func (s Sample) Validate() error {
	if !ValidMetricPath(s.Path) {
		return fmt.Errorf("invalid metric path %q", s.Path)
	}
	return nil
}

func (s Sample) Line() string {
	return fmt.Sprintf("%s %s %d", s.Path, strconv.FormatFloat(s.Value, 'f', -1, 64), s.Timestamp)
}

// ParseSample reads one `path value timestamp` line.
func ParseSample(line string) (Sample, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Sample{}, fmt.Errorf("expected 3 fields, got %d", len(fields))
	}

	value, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid metric value %q: %w", fields[1], err)
	}

	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Sample{}, fmt.Errorf("invalid metric timestamp %q: %w", fields[2], err)
	}

	sample := Sample{Path: fields[0], Value: value, Timestamp: ts}
	if err := sample.Validate(); err != nil {
		return Sample{}, err
	}
	return sample, nil
}

// JoinPath joins non-empty path segments with dots.
func JoinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}
