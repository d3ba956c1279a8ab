package threshold

import (
	"math"
	"strconv"
	"strings"

	"Probekit/internal/domain"
)

// Range is a Nagios style `[@][~][min]:max` range.
type Range struct {
	Min     float64
	Max     float64
	Inverse bool
}

// ParseRange parses a range token. A bare number N means 0..N, a missing max
// means +inf and `~` as min means -inf. A leading `@` inverts the match.
func ParseRange(value string) (Range, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return Range{}, domain.InvalidConfig("empty range")
	}

	r := Range{Min: 0, Max: math.Inf(1)}
	if strings.HasPrefix(raw, "@") {
		r.Inverse = true
		raw = raw[1:]
	}

	minPart, maxPart, hasColon := strings.Cut(raw, ":")
	if !hasColon {
		maxPart, minPart = minPart, ""
	}

	switch minPart {
	case "":
	case "~":
		r.Min = math.Inf(-1)
	default:
		f, err := strconv.ParseFloat(minPart, 64)
		if err != nil {
			return Range{}, domain.InvalidConfig("invalid range minimum %q in %q", minPart, value)
		}
		r.Min = f
	}

	if maxPart != "" {
		f, err := strconv.ParseFloat(maxPart, 64)
		if err != nil {
			return Range{}, domain.InvalidConfig("invalid range maximum %q in %q", maxPart, value)
		}
		r.Max = f
	} else if !hasColon {
		return Range{}, domain.InvalidConfig("invalid range %q", value)
	}

	if r.Min > r.Max {
		return Range{}, domain.InvalidConfig("range minimum exceeds maximum in %q", value)
	}
	return r, nil
}

// Includes reports whether v lies within the range, honouring inversion.
func (r Range) Includes(v float64) bool {
	inside := r.Min <= v && v <= r.Max
	return inside != r.Inverse
}

// RangeLevels alerts when a value falls outside a range.
type RangeLevels struct {
	Warning  *Range
	Critical *Range
}

func ParseRangeLevels(warning, critical string) (RangeLevels, error) {
	var levels RangeLevels
	if strings.TrimSpace(warning) != "" {
		r, err := ParseRange(warning)
		if err != nil {
			return levels, err
		}
		levels.Warning = &r
	}
	if strings.TrimSpace(critical) != "" {
		r, err := ParseRange(critical)
		if err != nil {
			return levels, err
		}
		levels.Critical = &r
	}
	return levels, nil
}

func (l RangeLevels) Evaluate(value float64) domain.Status {
	if l.Critical != nil && !l.Critical.Includes(value) {
		return domain.StatusCritical
	}
	if l.Warning != nil && !l.Warning.Includes(value) {
		return domain.StatusWarning
	}
	return domain.StatusOK
}
