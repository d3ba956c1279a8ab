package checks

import (
	"os"
	"strings"

	"Probekit/internal/threshold"
)

// parseHeaders splits "Name: value,Other: value" into a header map.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	if raw == "" {
		return headers
	}

	for _, header := range strings.Split(raw, ",") {
		name, value, ok := strings.Cut(header, ":")
		if !ok {
			continue
		}
		headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}
	return headers
}

// levels builds threshold levels from optional string flag values.
func levels(warning, critical string, comparator threshold.Comparator) (threshold.Levels, error) {
	w, err := threshold.ParseOptional(warning)
	if err != nil {
		return threshold.Levels{}, err
	}
	c, err := threshold.ParseOptional(critical)
	if err != nil {
		return threshold.Levels{}, err
	}
	return threshold.New(w, c, comparator), nil
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
