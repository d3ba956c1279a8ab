// Package collectors emits host and service measurements in the graphite
// line protocol.
package collectors

import (
	"context"
	"math"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"Probekit/internal/domain"
	"Probekit/internal/sysstat"

	"github.com/spf13/pflag"
)

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	return name
}

type LoadConfig struct {
	Scheme  string
	PerCore bool
}

func (c *LoadConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.Scheme, "scheme", hostname(), "Metric naming scheme, text to prepend to .$parent.$child")
	fs.BoolVarP(&c.PerCore, "per-core", "p", false, "Divide load average results by cpu/core count")
}

type LoadCollector struct {
	cfg    LoadConfig
	source sysstat.Source
	now    func() time.Time
}

func NewLoadCollector(cfg LoadConfig, source sysstat.Source) *LoadCollector {
	return &LoadCollector{cfg: cfg, source: source, now: time.Now}
}

func (c *LoadCollector) Name() string { return "LoadStat" }

func (c *LoadCollector) Collect(ctx context.Context) ([]domain.Sample, error) {
	avg, err := c.source.LoadAvg(ctx)
	if err != nil {
		return nil, domain.UnexpectedResponse("read load average", err)
	}

	values := map[string]float64{"one": avg.Load1, "five": avg.Load5, "fifteen": avg.Load15}
	if c.cfg.PerCore {
		cores, err := c.source.CPUCount(ctx)
		if err != nil || cores < 1 {
			return nil, domain.UnexpectedResponse("count cpus", err)
		}
		for k, v := range values {
			values[k] = math.Round(v/float64(cores)*100) / 100
		}
	}

	now := c.now()
	samples := make([]domain.Sample, 0, len(values))
	for _, name := range []string{"one", "five", "fifteen"} {
		samples = append(samples, domain.NewSample(domain.JoinPath(c.cfg.Scheme, "load_avg", name), values[name], now))
	}
	return samples, nil
}

type MemoryConfig struct {
	Scheme string
}

func (c *MemoryConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.Scheme, "scheme", "s", hostname()+".memory", "Metric naming scheme, text to prepend to metric")
}

type MemoryCollector struct {
	cfg    MemoryConfig
	source sysstat.Source
	now    func() time.Time
}

func NewMemoryCollector(cfg MemoryConfig, source sysstat.Source) *MemoryCollector {
	return &MemoryCollector{cfg: cfg, source: source, now: time.Now}
}

func (c *MemoryCollector) Name() string { return "MemoryGraphite" }

func (c *MemoryCollector) Collect(ctx context.Context) ([]domain.Sample, error) {
	vm, err := c.source.VirtualMemory(ctx)
	if err != nil {
		return nil, domain.UnexpectedResponse("read memory", err)
	}
	swap, err := c.source.SwapMemory(ctx)
	if err != nil {
		return nil, domain.UnexpectedResponse("read swap", err)
	}

	used := float64(vm.Total) - float64(vm.Free)
	bufCache := float64(vm.Buffers) + float64(vm.Cached)

	values := []struct {
		name  string
		value float64
	}{
		{"total", float64(vm.Total)},
		{"free", float64(vm.Free)},
		{"buffers", float64(vm.Buffers)},
		{"cached", float64(vm.Cached)},
		{"swapTotal", float64(swap.Total)},
		{"swapFree", float64(swap.Free)},
		{"swapUsed", float64(swap.Total) - float64(swap.Free)},
		{"used", used},
		{"usedWOBuffersCaches", used - bufCache},
		{"freeWOBuffersCaches", float64(vm.Free) + bufCache},
	}

	now := c.now()
	samples := make([]domain.Sample, 0, len(values))
	for _, v := range values {
		samples = append(samples, domain.NewSample(domain.JoinPath(c.cfg.Scheme, v.name), v.value, now))
	}
	return samples, nil
}

type DiskUsageConfig struct {
	Scheme       string
	IgnoreMount  string
	IncludeMount string
	Flatten      bool
	Types        string
	BlockSize    string
}

func (c *DiskUsageConfig) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&c.Scheme, "scheme", hostname(), "Metric naming scheme, text to prepend to .$parent.$child")
	fs.StringVarP(&c.IgnoreMount, "ignore-mount", "i", "", "Ignore mounts matching pattern(s)")
	fs.StringVarP(&c.IncludeMount, "include-mount", "I", "", "Include only mounts matching pattern(s)")
	fs.BoolVarP(&c.Flatten, "flatten", "f", false, "Output mounts with underscore rather than dot")
	fs.StringVarP(&c.Types, "type", "t", "", "Disk types (e.g. ext4) to include")
	fs.StringVarP(&c.BlockSize, "block-size", "B", "M", "Block size for sizes printed (K, M, G)")
}

var pseudoMounts = regexp.MustCompile(`/sys|/dev|/run`)

var blockSizes = map[string]float64{"K": 1 << 10, "M": 1 << 20, "G": 1 << 30}

type DiskUsageCollector struct {
	cfg     DiskUsageConfig
	ignore  []*regexp.Regexp
	include []*regexp.Regexp
	types   []string
	block   float64
	source  sysstat.Source
	now     func() time.Time
}

func NewDiskUsageCollector(cfg DiskUsageConfig, source sysstat.Source) (*DiskUsageCollector, error) {
	block, ok := blockSizes[strings.ToUpper(cfg.BlockSize)]
	if !ok {
		return nil, domain.InvalidConfig("unsupported block size %q", cfg.BlockSize)
	}
	ignore, err := compileList(cfg.IgnoreMount)
	if err != nil {
		return nil, err
	}
	include, err := compileList(cfg.IncludeMount)
	if err != nil {
		return nil, err
	}
	return &DiskUsageCollector{
		cfg:     cfg,
		ignore:  ignore,
		include: include,
		types:   splitList(cfg.Types),
		block:   block,
		source:  source,
		now:     time.Now,
	}, nil
}

func (c *DiskUsageCollector) Name() string { return "DiskUsageMetrics" }

func (c *DiskUsageCollector) Collect(ctx context.Context) ([]domain.Sample, error) {
	partitions, err := c.source.Partitions(ctx)
	if err != nil {
		return nil, domain.UnexpectedResponse("list partitions", err)
	}

	now := c.now()
	var samples []domain.Sample
	for _, p := range partitions {
		mnt := p.Mountpoint
		if pseudoMounts.MatchString(mnt) {
			continue
		}
		if len(c.types) > 0 && !slices.Contains(c.types, p.Fstype) {
			continue
		}
		if matchAny(c.ignore, mnt) {
			continue
		}
		if len(c.include) > 0 && !matchAny(c.include, mnt) {
			continue
		}

		usage, err := c.source.Usage(ctx, mnt)
		if err != nil {
			return nil, domain.UnexpectedResponse("read usage of "+mnt, err)
		}

		prefix := domain.JoinPath(c.cfg.Scheme, "disk_usage", c.mountSegment(mnt))
		samples = append(samples,
			domain.NewSample(prefix+".used", math.Ceil(float64(usage.Used)/c.block), now),
			domain.NewSample(prefix+".avail", math.Floor(float64(usage.Free)/c.block), now),
			domain.NewSample(prefix+".used_percentage", math.Ceil(usage.UsedPercent), now),
		)
	}
	return samples, nil
}

// mountSegment names a mount point: "/" is root, "/var/log" is
// root.var.log, or var_log when flattened.
func (c *DiskUsageCollector) mountSegment(mnt string) string {
	delim := "."
	if c.cfg.Flatten {
		delim = "_"
	}
	if mnt == "/" {
		return "root"
	}
	name := strings.TrimPrefix(mnt, "/")
	if !c.cfg.Flatten {
		name = "root/" + name
	}
	return strings.ReplaceAll(name, "/", delim)
}

func compileList(raw string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range splitList(raw) {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, domain.InvalidConfig("invalid pattern %q: %v", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
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
