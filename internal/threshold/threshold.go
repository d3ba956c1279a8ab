// Package threshold evaluates observed values against warning and critical
// boundaries.
package threshold

import (
	"fmt"
	"strconv"
	"strings"

	"Probekit/internal/domain"
)

type Comparator string

const (
	GreaterThan          Comparator = ">"
	GreaterThanOrEqualTo Comparator = ">="
	LesserThanOrEqualTo  Comparator = "<="
	LesserThan           Comparator = "<"
)

func ParseComparator(value string) (Comparator, error) {
	switch c := Comparator(strings.TrimSpace(value)); c {
	case GreaterThan, GreaterThanOrEqualTo, LesserThanOrEqualTo, LesserThan:
		return c, nil
	case "":
		return GreaterThan, nil
	default:
		return "", domain.InvalidConfig("invalid comparator %q", value)
	}
}

// Compare reports whether value breaches limit under c.
func (c Comparator) Compare(value, limit float64) bool {
	switch c {
	case GreaterThanOrEqualTo:
		return value >= limit
	case LesserThanOrEqualTo:
		return value <= limit
	case LesserThan:
		return value < limit
	default:
		return value > limit
	}
}

// Levels holds optional warning and critical limits. A nil limit never fires.
type Levels struct {
	Warning    *float64
	Critical   *float64
	Comparator Comparator
}

func New(warning, critical *float64, comparator Comparator) Levels {
	return Levels{Warning: warning, Critical: critical, Comparator: comparator}
}

// Evaluate checks critical before warning; the first breach wins.
func (l Levels) Evaluate(value float64) domain.Status {
	if l.Critical != nil && l.Comparator.Compare(value, *l.Critical) {
		return domain.StatusCritical
	}
	if l.Warning != nil && l.Comparator.Compare(value, *l.Warning) {
		return domain.StatusWarning
	}
	return domain.StatusOK
}

// Limit returns the limit that produced status, for messages.
func (l Levels) Limit(status domain.Status) (float64, bool) {
	switch status {
	case domain.StatusCritical:
		if l.Critical != nil {
			return *l.Critical, true
		}
	case domain.StatusWarning:
		if l.Warning != nil {
			return *l.Warning, true
		}
	}
	return 0, false
}

func Float(v float64) *float64 {
	return &v
}

// ParseOptional parses a flag value where the empty string means unset.
func ParseOptional(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, domain.InvalidConfig("invalid threshold %q", value)
	}
	return &f, nil
}

// ParseTriple parses comma separated per-interval limits such as "10,20,30".
func ParseTriple(value string) ([3]float64, error) {
	var out [3]float64
	parts := strings.Split(value, ",")
	if len(parts) != 3 {
		return out, domain.InvalidConfig("expected three comma separated values, got %q", value)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, domain.InvalidConfig("invalid threshold %q in %q", p, value)
		}
		out[i] = f
	}
	return out, nil
}

// AnyExceeds reports whether any value is strictly above its paired limit.
func AnyExceeds(values []float64, limits [3]float64) bool {
	for i, v := range values {
		if i < len(limits) && v > limits[i] {
			return true
		}
	}
	return false
}

func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (l Levels) String() string {
	format := func(p *float64) string {
		if p == nil {
			return "-"
		}
		return FormatValue(*p)
	}
	return fmt.Sprintf("warning %s %s, critical %s %s", l.Comparator, format(l.Warning), l.Comparator, format(l.Critical))
}
