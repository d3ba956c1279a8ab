package sysstat

import (
	"errors"

	"github.com/shirou/gopsutil/v3/cpu"
)

var ErrNoCPUTimes = errors.New("no cpu times available")

// CPUFields lists the /proc/stat columns in kernel order.
var CPUFields = []string{"user", "nice", "system", "idle", "iowait", "irq", "softirq", "steal", "guest"}

func cpuValues(t cpu.TimesStat) []float64 {
	return []float64{t.User, t.Nice, t.System, t.Idle, t.Iowait, t.Irq, t.Softirq, t.Steal, t.Guest}
}

// CPUUsage is the share of each field between two samples, in percent.
type CPUUsage struct {
	Total  float64
	Fields map[string]float64
}

func DiffCPU(before, after cpu.TimesStat) (CPUUsage, error) {
	b := cpuValues(before)
	a := cpuValues(after)

	diffs := make([]float64, len(a))
	var total float64
	for i := range a {
		diffs[i] = a[i] - b[i]
		total += diffs[i]
	}
	if total <= 0 {
		return CPUUsage{}, errors.New("cpu counters did not advance")
	}

	usage := CPUUsage{Fields: make(map[string]float64, len(CPUFields))}
	for i, name := range CPUFields {
		usage.Fields[name] = 100 * diffs[i] / total
	}
	usage.Total = 100 * (total - diffs[3]) / total
	return usage, nil
}
