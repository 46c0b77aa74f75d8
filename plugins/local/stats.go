package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"systemstat/base"
)

type hostStats struct{}

// CPUPercent is the utilisation since the previous call, as psutil does.
func (hostStats) CPUPercent(ctx context.Context) (float64, error) {
	p, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, fmt.Errorf("%w: no cpu statistics", plugin.ErrNotFound)
	}
	return p[0], nil
}

func (hostStats) VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemoryWithContext(ctx)
}

func (hostStats) SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error) {
	return mem.SwapMemoryWithContext(ctx)
}

func (hostStats) DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error) {
	u, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return nil, pathError(path, err)
	}
	return u, nil
}

// InterfaceIP returns the first IPv4 address of the named interface.
func (hostStats) InterfaceIP(ctx context.Context, name string) (string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Name != name {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, _ := strings.Cut(a.Addr, "/")
			if strings.Contains(ip, ".") {
				return ip, nil
			}
		}
		return "", fmt.Errorf("%w: no IPv4 address on %s", plugin.ErrNotFound, name)
	}
	return "", fmt.Errorf("%w: interface %s", plugin.ErrNotFound, name)
}

// ProcessPID returns the oldest process named name.
func (hostStats) ProcessPID(ctx context.Context, name string) (int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return 0, err
	}

	var (
		oldest  *process.Process
		created int64
	)
	for _, p := range procs {
		n, err := p.NameWithContext(ctx)
		if err != nil || n != name {
			continue
		}
		ct, err := p.CreateTimeWithContext(ctx)
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return 0, fmt.Errorf("%w: process %s", plugin.ErrPermissionDenied, name)
			}
			continue
		}
		if oldest == nil || ct < created {
			oldest, created = p, ct
		}
	}
	if oldest == nil {
		return 0, fmt.Errorf("%w: process %s", plugin.ErrNotFound, name)
	}

	status, err := oldest.StatusWithContext(ctx)
	if err == nil {
		for _, s := range status {
			if s == process.Zombie {
				return oldest.Pid, fmt.Errorf("%w: pid %d", plugin.ErrZombieProcess, oldest.Pid)
			}
		}
	}
	return oldest.Pid, nil
}

func (hostStats) IsMountPoint(ctx context.Context, path string) (bool, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return false, err
	}
	path = filepath.Clean(path)
	for _, p := range parts {
		if p.Mountpoint == path {
			return true, nil
		}
	}
	return false, nil
}
