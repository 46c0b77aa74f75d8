package plugin

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// Executor is the channel to one device. Local and SSH implementations share
// it so strategies never know where they run.
type Executor interface {
	RunCommand(ctx context.Context, cmd string) (CommandResult, error)
	StatPath(ctx context.Context, path string) (FileInfo, error)
	ListDirectory(ctx context.Context, path string) ([]FileInfo, error)
	CheckReachable(ctx context.Context) (bool, error)
	Stats() HostStats
	Close() error
}

// HostStats exposes the host statistics behind the catalog's host metrics.
type HostStats interface {
	CPUPercent(ctx context.Context) (float64, error)
	VirtualMemory(ctx context.Context) (*mem.VirtualMemoryStat, error)
	SwapMemory(ctx context.Context) (*mem.SwapMemoryStat, error)
	DiskUsage(ctx context.Context, path string) (*disk.UsageStat, error)
	InterfaceIP(ctx context.Context, name string) (string, error)
	// ProcessPID returns the PID of the oldest process with the given name.
	// Failures wrap ErrZombieProcess, ErrPermissionDenied or ErrNotFound.
	ProcessPID(ctx context.Context, name string) (int32, error)
	IsMountPoint(ctx context.Context, path string) (bool, error)
}
