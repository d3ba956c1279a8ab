package checks

import (
	"context"
	"errors"
	"testing"

	"Probekit/internal/domain"
	"Probekit/internal/sysstat"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCheck(t *testing.T) {
	tests := []struct {
		name    string
		load    load.AvgStat
		perCore bool
		status  domain.Status
		msg     string
	}{
		{"idle", load.AvgStat{Load1: 0.5, Load5: 0.25, Load15: 0.125}, false, domain.StatusOK, "Load average: 0.5, 0.25, 0.13"},
		{"warning on short interval", load.AvgStat{Load1: 11, Load5: 5, Load15: 1}, false, domain.StatusWarning, ""},
		{"critical on long interval", load.AvgStat{Load1: 1, Load5: 1, Load15: 80}, false, domain.StatusCritical, ""},
		{"per core", load.AvgStat{Load1: 44, Load5: 4, Load15: 4}, true, domain.StatusWarning, "Load average: 11, 1, 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &sysstat.Static{Load: &tt.load, CPUs: 4}
			check, err := NewLoadCheck(LoadConfig{Warning: "10,20,30", Critical: "25,50,75", PerCore: tt.perCore}, source)
			require.NoError(t, err)

			result, err := check.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.status, result.Status)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, result.Message)
			}
		})
	}

	_, err := NewLoadCheck(LoadConfig{Warning: "1,2", Critical: "1,2,3"}, &sysstat.Static{})
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func TestRAMCheck(t *testing.T) {
	memory := &mem.VirtualMemoryStat{Total: 1000 << 20, Available: 80 << 20}
	source := &sysstat.Static{Memory: memory}

	check, err := NewRAMCheck(RAMConfig{Warning: 10, Critical: 5}, source)
	require.NoError(t, err)
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, result.Status)
	assert.Equal(t, "8% free RAM left", result.Message)

	check, err = NewRAMCheck(RAMConfig{Megabytes: true, Warning: 100, Critical: 50}, source)
	require.NoError(t, err)
	result, err = check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, result.Status)
	assert.Equal(t, "80 megabytes free RAM left", result.Message)

	check, err = NewRAMCheck(RAMConfig{Warning: 5, Critical: 1}, source)
	require.NoError(t, err)
	result, err = check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, result.Status)

	_, err = NewRAMCheck(RAMConfig{Warning: 120, Critical: 5}, source)
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func diskSource() *sysstat.Static {
	return &sysstat.Static{
		Parts: []disk.PartitionStat{
			{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
			{Device: "/dev/sdb1", Mountpoint: "/data", Fstype: "xfs"},
			{Device: "tmpfs", Mountpoint: "/run", Fstype: "tmpfs"},
		},
		Usages: map[string]*disk.UsageStat{
			"/":     {Path: "/", UsedPercent: 50, InodesTotal: 100, InodesUsedPercent: 10},
			"/data": {Path: "/data", UsedPercent: 96.2, InodesTotal: 100, InodesUsedPercent: 88},
			"/run":  {Path: "/run", UsedPercent: 90, InodesTotal: 0},
		},
	}
}

func defaultDiskConfig() DiskConfig {
	return DiskConfig{Warning: 85, Critical: 95, InodeWarn: 85, InodeCrit: 95}
}

func TestDiskCheck(t *testing.T) {
	check, err := NewDiskCheck(defaultDiskConfig(), diskSource())
	require.NoError(t, err)
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCritical, result.Status)
	assert.Equal(t, "/data 97%, /data inodes 88%, /run 90%", result.Message)

	cfg := defaultDiskConfig()
	cfg.IgnoreTypes = "tmpfs,xfs"
	check, err = NewDiskCheck(cfg, diskSource())
	require.NoError(t, err)
	result, err = check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, result.Status)
	assert.Equal(t, "All disk usage under 85% and inode usage under 85%", result.Message)

	cfg = defaultDiskConfig()
	cfg.IncludeLine = "tmpfs"
	check, err = NewDiskCheck(cfg, diskSource())
	require.NoError(t, err)
	result, err = check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, result.Status)
	assert.Equal(t, "/run 90%", result.Message)

	cfg = defaultDiskConfig()
	cfg.FSTypes = "btrfs"
	check, err = NewDiskCheck(cfg, diskSource())
	require.NoError(t, err)
	result, err = check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusUnknown, result.Status)
	assert.Equal(t, "No filesystems found", result.Message)
}

func TestDiskCheckOptions(t *testing.T) {
	cfg := defaultDiskConfig()
	cfg.IgnoreLine = "sda"
	cfg.IncludeLine = "sdb"
	_, err := NewDiskCheck(cfg, diskSource())
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))

	cfg = defaultDiskConfig()
	cfg.IgnoreMount = "/data,/run"
	check, err := NewDiskCheck(cfg, diskSource())
	require.NoError(t, err)
	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, result.Status)
}

func TestCPUCheck(t *testing.T) {
	source := &sysstat.Static{Times: []cpu.TimesStat{
		{User: 100, System: 50, Idle: 850},
		{User: 130, System: 60, Idle: 910},
	}}

	check, err := NewCPUCheck(CPUConfig{Warning: 30, Critical: 90}, source)
	require.NoError(t, err)
	assert.Equal(t, "CheckCPU TOTAL", check.Name())

	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWarning, result.Status)
	assert.Contains(t, result.Message, "total=40 user=30 nice=0 system=10 idle=60")
}

func TestCPUCheckSingleField(t *testing.T) {
	source := &sysstat.Static{Times: []cpu.TimesStat{
		{User: 0, Iowait: 0, Idle: 0},
		{User: 10, Iowait: 60, Idle: 30},
	}}

	check, err := NewCPUCheck(CPUConfig{Warning: 20, Critical: 50, Metric: "iowait"}, source)
	require.NoError(t, err)
	assert.Equal(t, "CheckCPU IOWAIT", check.Name())

	result, err := check.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCritical, result.Status)

	_, err = NewCPUCheck(CPUConfig{Metric: "bogus"}, source)
	assert.Equal(t, domain.KindInvalidConfig, domain.KindOf(err))
}

func TestCPUCheckSourceError(t *testing.T) {
	check, err := NewCPUCheck(CPUConfig{Warning: 80, Critical: 100}, &sysstat.Static{Err: errors.New("no /proc")})
	require.NoError(t, err)
	_, err = check.Run(context.Background())
	assert.Equal(t, domain.KindUnexpectedResponse, domain.KindOf(err))
}
