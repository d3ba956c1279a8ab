package statsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line string
		want Metric
	}{
		{"requests:1|c", Metric{Name: "requests", Kind: Counter, Value: 1}},
		{"requests:3|c|@0.5", Metric{Name: "requests", Kind: Counter, Value: 6}},
		{"requests:2|c@0.1", Metric{Name: "requests", Kind: Counter, Value: 20}},
		{"events:4|m", Metric{Name: "events", Kind: Counter, Value: 4}},
		{"queue.depth:12.5|g", Metric{Name: "queue.depth", Kind: Gauge, Value: 12.5}},
		{"db.query:320|ms", Metric{Name: "db.query", Kind: Timer, Value: 320}},
		{"size:1.5|h", Metric{Name: "size", Kind: Timer, Value: 1.5}},
		{"  padded:1|c \r", Metric{Name: "padded", Kind: Counter, Value: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Name, got.Name)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.InDelta(t, tt.want.Value, got.Value, 1e-9)
		})
	}
}

func TestParseErrors(t *testing.T) {
	lines := []string{
		"no-type",
		"novalue|c",
		":1|c",
		"name:|c",
		"name:1.5|c",
		"name:abc|g",
		"name:1|x",
		"name:1|c|@0",
		"name:1|c|@abc",
		"name:fast|ms",
	}
	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			_, err := Parse(line)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "counter", Counter.String())
	assert.Equal(t, "gauge", Gauge.String())
	assert.Equal(t, "timer", Timer.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
