package checks

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/sysstat"
	"Probekit/internal/threshold"

	"github.com/spf13/pflag"
)

type LoadConfig struct {
	Warning  string
	Critical string
	PerCore  bool
}

func (c *LoadConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Warning, "warn", "w", "10,20,30", "Load WARNING threshold")
	fs.StringVarP(&c.Critical, "crit", "c", "25,50,75", "Load CRITICAL threshold")
	fs.BoolVarP(&c.PerCore, "per-core", "p", false, "Divide load averages by the number of cores")
}

type LoadCheck struct {
	cfg      LoadConfig
	warning  [3]float64
	critical [3]float64
	source   sysstat.Source
}

func NewLoadCheck(cfg LoadConfig, source sysstat.Source) (*LoadCheck, error) {
	warning, err := threshold.ParseTriple(cfg.Warning)
	if err != nil {
		return nil, err
	}
	critical, err := threshold.ParseTriple(cfg.Critical)
	if err != nil {
		return nil, err
	}
	return &LoadCheck{cfg: cfg, warning: warning, critical: critical, source: source}, nil
}

func (c *LoadCheck) Name() string { return "CheckLoad" }

func (c *LoadCheck) Run(ctx context.Context) (domain.Result, error) {
	avg, err := c.source.LoadAvg(ctx)
	if err != nil {
		return domain.Warning("Could not read load average: %v", err), nil
	}

	values := []float64{avg.Load1, avg.Load5, avg.Load15}
	if c.cfg.PerCore {
		cores, err := c.source.CPUCount(ctx)
		if err != nil || cores < 1 {
			return domain.Result{}, domain.UnexpectedResponse("count cpus", err)
		}
		for i := range values {
			values[i] /= float64(cores)
		}
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
	}
	msg := "Load average: " + strings.Join(parts, ", ")

	switch {
	case threshold.AnyExceeds(values, c.critical):
		return domain.Critical("%s", msg), nil
	case threshold.AnyExceeds(values, c.warning):
		return domain.Warning("%s", msg), nil
	default:
		return domain.OK("%s", msg), nil
	}
}

type RAMConfig struct {
	Megabytes bool
	Warning   float64
	Critical  float64
}

func (c *RAMConfig) Bind(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Megabytes, "megabytes", "m", false, "Unless --megabytes is specified the thresholds are in percents")
	fs.Float64VarP(&c.Warning, "warn", "w", 10, "Warn when free RAM drops below this")
	fs.Float64VarP(&c.Critical, "crit", "c", 5, "Critical when free RAM drops below this")
}

type RAMCheck struct {
	cfg    RAMConfig
	levels threshold.Levels
	source sysstat.Source
}

func NewRAMCheck(cfg RAMConfig, source sysstat.Source) (*RAMCheck, error) {
	if !cfg.Megabytes && (cfg.Warning > 100 || cfg.Critical > 100) {
		return nil, domain.InvalidConfig("invalid percentage")
	}
	return &RAMCheck{
		cfg:    cfg,
		levels: threshold.New(threshold.Float(cfg.Warning), threshold.Float(cfg.Critical), threshold.LesserThan),
		source: source,
	}, nil
}

func (c *RAMCheck) Name() string { return "CheckRAM" }

func (c *RAMCheck) Run(ctx context.Context) (domain.Result, error) {
	vm, err := c.source.VirtualMemory(ctx)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("read memory", err)
	}

	totalMB := vm.Total >> 20
	freeMB := vm.Available >> 20

	if c.cfg.Megabytes {
		status := c.levels.Evaluate(float64(freeMB))
		return domain.NewResult(status, "%d megabytes free RAM left", freeMB), nil
	}

	if totalMB == 0 {
		return domain.Result{}, domain.UnexpectedResponse("read memory", fmt.Errorf("total memory is zero"))
	}
	left := freeMB * 100 / totalMB
	status := c.levels.Evaluate(float64(left))
	return domain.NewResult(status, "%d%% free RAM left", left), nil
}

type DiskConfig struct {
	FSTypes     string
	IgnoreTypes string
	IgnoreMount string
	IgnoreLine  string
	IncludeLine string
	Warning     float64
	Critical    float64
	InodeWarn   float64
	InodeCrit   float64
}

func (c *DiskConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.FSTypes, "fstype", "t", "", "Only check fs type(s)")
	fs.StringVarP(&c.IgnoreTypes, "ignoretype", "x", "", "Ignore fs type(s)")
	fs.StringVarP(&c.IgnoreMount, "ignoremnt", "i", "", "Ignore mount point(s)")
	fs.StringVarP(&c.IgnoreLine, "ignoreline", "l", "", "Ignore mounts matching pattern(s)")
	fs.StringVarP(&c.IncludeLine, "includeline", "L", "", "Only include mounts matching pattern(s)")
	fs.Float64VarP(&c.Warning, "warn", "w", 85, "Warn if PERCENT or more of disk full")
	fs.Float64VarP(&c.Critical, "crit", "c", 95, "Critical if PERCENT or more of disk full")
	fs.Float64VarP(&c.InodeWarn, "iwarn", "W", 85, "Warn if PERCENT or more of inodes used")
	fs.Float64VarP(&c.InodeCrit, "icrit", "K", 95, "Critical if PERCENT or more of inodes used")
}

type DiskCheck struct {
	cfg         DiskConfig
	fsTypes     []string
	ignoreTypes []string
	ignoreMount []string
	ignoreLine  []*regexp.Regexp
	includeLine []*regexp.Regexp
	space       threshold.Levels
	inodes      threshold.Levels
	source      sysstat.Source
}

func NewDiskCheck(cfg DiskConfig, source sysstat.Source) (*DiskCheck, error) {
	if cfg.IgnoreLine != "" && cfg.IncludeLine != "" {
		return nil, domain.InvalidConfig("Do not use -l and -L options concurrently")
	}
	ignoreLine, err := compileAll(splitList(cfg.IgnoreLine))
	if err != nil {
		return nil, err
	}
	includeLine, err := compileAll(splitList(cfg.IncludeLine))
	if err != nil {
		return nil, err
	}

	return &DiskCheck{
		cfg:         cfg,
		fsTypes:     splitList(cfg.FSTypes),
		ignoreTypes: splitList(cfg.IgnoreTypes),
		ignoreMount: splitList(cfg.IgnoreMount),
		ignoreLine:  ignoreLine,
		includeLine: includeLine,
		space:       threshold.New(threshold.Float(cfg.Warning), threshold.Float(cfg.Critical), threshold.GreaterThanOrEqualTo),
		inodes:      threshold.New(threshold.Float(cfg.InodeWarn), threshold.Float(cfg.InodeCrit), threshold.GreaterThanOrEqualTo),
		source:      source,
	}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, domain.InvalidConfig("invalid pattern %q: %v", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

func (c *DiskCheck) Name() string { return "CheckDisk" }

func (c *DiskCheck) Run(ctx context.Context) (domain.Result, error) {
	partitions, err := c.source.Partitions(ctx)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("list partitions", err)
	}

	var crit, warn []string
	checked := 0
	for _, p := range partitions {
		line := fmt.Sprintf("%s %s %s", p.Device, p.Fstype, p.Mountpoint)
		if len(c.includeLine) > 0 && !matchesAny(c.includeLine, line) {
			continue
		}
		if len(c.fsTypes) > 0 && !slices.Contains(c.fsTypes, p.Fstype) {
			continue
		}
		if slices.Contains(c.ignoreTypes, p.Fstype) || slices.Contains(c.ignoreMount, p.Mountpoint) {
			continue
		}
		if matchesAny(c.ignoreLine, line) {
			continue
		}

		usage, err := c.source.Usage(ctx, p.Mountpoint)
		if err != nil {
			return domain.Unknown("malformed usage for %s: %v", p.Mountpoint, err), nil
		}
		checked++

		capacity := math.Ceil(usage.UsedPercent)
		switch c.space.Evaluate(capacity) {
		case domain.StatusCritical:
			crit = append(crit, fmt.Sprintf("%s %.0f%%", p.Mountpoint, capacity))
		case domain.StatusWarning:
			warn = append(warn, fmt.Sprintf("%s %.0f%%", p.Mountpoint, capacity))
		}

		if usage.InodesTotal == 0 {
			continue
		}
		inodes := math.Ceil(usage.InodesUsedPercent)
		switch c.inodes.Evaluate(inodes) {
		case domain.StatusCritical:
			crit = append(crit, fmt.Sprintf("%s inodes %.0f%%", p.Mountpoint, inodes))
		case domain.StatusWarning:
			warn = append(warn, fmt.Sprintf("%s inodes %.0f%%", p.Mountpoint, inodes))
		}
	}

	if checked == 0 {
		return domain.Unknown("No filesystems found"), nil
	}

	summary := strings.Join(append(crit, warn...), ", ")
	switch {
	case len(crit) > 0:
		return domain.Critical("%s", summary), nil
	case len(warn) > 0:
		return domain.Warning("%s", summary), nil
	default:
		return domain.OK("All disk usage under %s%% and inode usage under %s%%",
			threshold.FormatValue(c.cfg.Warning), threshold.FormatValue(c.cfg.InodeWarn)), nil
	}
}

type CPUConfig struct {
	Warning  float64
	Critical float64
	Sleep    time.Duration
	Metric   string
}

func (c *CPUConfig) Bind(fs *pflag.FlagSet) {
	fs.Float64VarP(&c.Warning, "warn", "w", 80, "Warn when usage is above this percentage")
	fs.Float64VarP(&c.Critical, "crit", "c", 100, "Critical when usage is above this percentage")
	fs.DurationVar(&c.Sleep, "sleep", time.Second, "Time between the two samples")
	fs.StringVar(&c.Metric, "metric", "", "Check one cpu field (user, system, iowait, ...) instead of total usage")
}

type CPUCheck struct {
	cfg    CPUConfig
	levels threshold.Levels
	source sysstat.Source
}

func NewCPUCheck(cfg CPUConfig, source sysstat.Source) (*CPUCheck, error) {
	if cfg.Metric != "" && !slices.Contains(sysstat.CPUFields, cfg.Metric) {
		return nil, domain.InvalidConfig("unknown cpu metric %q", cfg.Metric)
	}
	return &CPUCheck{
		cfg:    cfg,
		levels: threshold.New(threshold.Float(cfg.Warning), threshold.Float(cfg.Critical), threshold.GreaterThan),
		source: source,
	}, nil
}

func (c *CPUCheck) Name() string {
	if c.cfg.Metric != "" {
		return "CheckCPU " + strings.ToUpper(c.cfg.Metric)
	}
	return "CheckCPU TOTAL"
}

func (c *CPUCheck) Timeout() time.Duration { return c.cfg.Sleep + 10*time.Second }

func (c *CPUCheck) Run(ctx context.Context) (domain.Result, error) {
	before, err := c.source.CPUTimes(ctx)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("read cpu times", err)
	}

	select {
	case <-ctx.Done():
		return domain.Result{}, ctx.Err()
	case <-time.After(c.cfg.Sleep):
	}

	after, err := c.source.CPUTimes(ctx)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("read cpu times", err)
	}

	usage, err := sysstat.DiffCPU(before, after)
	if err != nil {
		return domain.Result{}, domain.UnexpectedResponse("compute cpu usage", err)
	}

	checked := usage.Total
	if c.cfg.Metric != "" {
		checked = usage.Fields[c.cfg.Metric]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "total=%s", threshold.FormatValue(math.Round(usage.Total*100)/100))
	for _, name := range sysstat.CPUFields {
		fmt.Fprintf(&b, " %s=%s", name, threshold.FormatValue(math.Round(usage.Fields[name]*100)/100))
	}

	return domain.NewResult(c.levels.Evaluate(checked), "%s", b.String()), nil
}
