package sysstat

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Static serves fixed statistics. CPU samples are returned in order, the
// last one repeating.
type Static struct {
	Load   *load.AvgStat
	CPUs   int
	Times  []cpu.TimesStat
	Memory *mem.VirtualMemoryStat
	Swap   *mem.SwapMemoryStat
	Parts  []disk.PartitionStat
	Usages map[string]*disk.UsageStat
	Err    error

	calls int
}

func (s *Static) LoadAvg(ctx context.Context) (*load.AvgStat, error) {
	return s.Load, s.Err
}

func (s *Static) CPUCount(ctx context.Context) (int, error) {
	return s.CPUs, s.Err
}

func (s *Static) CPUTimes(ctx context.Context) (cpu.TimesStat, error) {
	if s.Err != nil {
		return cpu.TimesStat{}, s.Err
	}
	if len(s.Times) == 0 {
		return cpu.TimesStat{}, ErrNoCPUTimes
	}
	i := s.calls
	if i >= len(s.Times) {
		i = len(s.Times) - 1
	}
	s.calls++
	return s.Times[i], nil
}

func (s *Static) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return s.Memory, s.Err
}

func (s *Static) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	if s.Swap == nil {
		return &mem.SwapMemoryStat{}, s.Err
	}
	return s.Swap, s.Err
}

func (s *Static) Partitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return s.Parts, s.Err
}

func (s *Static) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	u, ok := s.Usages[path]
	if !ok {
		return nil, errors.New("no usage for " + path)
	}
	return u, nil
}
