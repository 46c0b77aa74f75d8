package sshcollect

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"systemstat/base"
)

// cpuSampleInterval is the gap between the two /proc/stat reads.
const cpuSampleInterval = 500 * time.Millisecond

type runFunc func(ctx context.Context, cmd string) (plugin.CommandResult, error)

// remoteStats fills gopsutil's stat structs from command output so remote and
// local values have the same shape.
type remoteStats struct {
	run runFunc
}

// output runs cmd and fails on a non-zero exit.
func (s *remoteStats) output(ctx context.Context, cmd string) (string, error) {
	res, err := s.run(ctx, cmd)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: %s: exit status %d: %s",
			plugin.ErrCommandFailed, cmd, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

func (s *remoteStats) CPUPercent(ctx context.Context) (float64, error) {
	out, err := s.output(ctx, "cat /proc/stat")
	if err != nil {
		return 0, err
	}
	t1, err := parseProcStat(out)
	if err != nil {
		return 0, err
	}

	wait := cpuSampleInterval
	if dl, ok := ctx.Deadline(); ok {
		if half := time.Until(dl) / 2; half < wait {
			wait = half
		}
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	out, err = s.output(ctx, "cat /proc/stat")
	if err != nil {
		return 0, err
	}
	t2, err := parseProcStat(out)
	if err != nil {
		return 0, err
	}
	return busyPercent(t1, t2), nil
}

func (s *remoteStats) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	out, err := s.output(ctx, "cat /proc/meminfo")
	if err != nil {
		return nil, err
	}
	return parseMeminfo(out), nil
}

func (s *remoteStats) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	meminfo, err := s.output(ctx, "cat /proc/meminfo")
	if err != nil {
		return nil, err
	}
	vmstat, err := s.output(ctx, "cat /proc/vmstat")
	if err != nil {
		return nil, err
	}
	return parseSwap(meminfo, vmstat), nil
}

func (s *remoteStats) DiskUsage(ctx context.Context, p string) (*disk.UsageStat, error) {
	res, err := s.run(ctx, "df -P -k "+shellescape.Quote(p))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("%w: %s: %s", plugin.ErrNotFound, p, strings.TrimSpace(res.Stderr))
	}
	return parseDf(res.Stdout)
}

func (s *remoteStats) InterfaceIP(ctx context.Context, name string) (string, error) {
	res, err := s.run(ctx, "ip -o -4 addr show dev "+shellescape.Quote(name))
	if err != nil {
		return "", err
	}
	ip := parseIPAddr(res.Stdout)
	if res.ExitCode != 0 || ip == "" {
		return "", fmt.Errorf("%w: no IPv4 address on %s", plugin.ErrNotFound, name)
	}
	return ip, nil
}

// ProcessPID uses pgrep -o, which picks the oldest match.
func (s *remoteStats) ProcessPID(ctx context.Context, name string) (int32, error) {
	res, err := s.run(ctx, "pgrep -o -x "+shellescape.Quote(name))
	if err != nil {
		return 0, err
	}
	switch res.ExitCode {
	case 0:
	case 1:
		return 0, fmt.Errorf("%w: process %s", plugin.ErrNotFound, name)
	default:
		return 0, fmt.Errorf("%w: pgrep exit status %d", plugin.ErrCommandFailed, res.ExitCode)
	}
	pid64, err := strconv.ParseInt(strings.TrimSpace(res.Stdout), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: pgrep output %q", plugin.ErrNotFound, res.Stdout)
	}
	pid := int32(pid64)

	stat, err := s.run(ctx, fmt.Sprintf("cat /proc/%d/stat", pid))
	if err != nil {
		return 0, err
	}
	switch {
	case stat.ExitCode != 0 && strings.Contains(stat.Stderr, "Permission denied"):
		return pid, fmt.Errorf("%w: pid %d", plugin.ErrPermissionDenied, pid)
	case stat.ExitCode != 0:
		// Exited between pgrep and cat.
		return 0, fmt.Errorf("%w: process %s", plugin.ErrNotFound, name)
	case procState(stat.Stdout) == "Z":
		return pid, fmt.Errorf("%w: pid %d", plugin.ErrZombieProcess, pid)
	}
	return pid, nil
}

func (s *remoteStats) IsMountPoint(ctx context.Context, p string) (bool, error) {
	res, err := s.run(ctx, "mountpoint -q "+shellescape.Quote(path.Clean(p)))
	if err != nil {
		return false, err
	}
	return res.ExitCode == 0, nil
}

// busyPercent is the share of non-idle jiffies between two samples.
func busyPercent(t1, t2 cpu.TimesStat) float64 {
	total := func(t cpu.TimesStat) float64 {
		return t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	}
	idle := func(t cpu.TimesStat) float64 { return t.Idle + t.Iowait }

	dt := total(t2) - total(t1)
	if dt <= 0 {
		return 0
	}
	busy := dt - (idle(t2) - idle(t1))
	if busy < 0 {
		busy = 0
	}
	pct := busy / dt * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
