package systemstat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/mem"

	"systemstat/base"
)

func cpuPercent(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
	v, err := b.exec.Stats().CPUPercent(ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func memTotal(v *mem.VirtualMemoryStat) float64     { return float64(v.Total) }
func memAvailable(v *mem.VirtualMemoryStat) float64 { return float64(v.Available) }
func memPercent(v *mem.VirtualMemoryStat) float64   { return v.UsedPercent }
func memUsed(v *mem.VirtualMemoryStat) float64      { return float64(v.Used) }
func memFree(v *mem.VirtualMemoryStat) float64      { return float64(v.Free) }
func memActive(v *mem.VirtualMemoryStat) float64    { return float64(v.Active) }
func memInactive(v *mem.VirtualMemoryStat) float64  { return float64(v.Inactive) }
func memBuffers(v *mem.VirtualMemoryStat) float64   { return float64(v.Buffers) }
func memCached(v *mem.VirtualMemoryStat) float64    { return float64(v.Cached) }

func vmField(f func(*mem.VirtualMemoryStat) float64) strategy {
	return func(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
		v, err := b.exec.Stats().VirtualMemory(ctx)
		if err != nil {
			return nil, err
		}
		return f(v), nil
	}
}

func swapTotal(s *mem.SwapMemoryStat) float64   { return float64(s.Total) }
func swapUsed(s *mem.SwapMemoryStat) float64    { return float64(s.Used) }
func swapFree(s *mem.SwapMemoryStat) float64    { return float64(s.Free) }
func swapPercent(s *mem.SwapMemoryStat) float64 { return s.UsedPercent }
func swapIn(s *mem.SwapMemoryStat) float64      { return float64(s.Sin) }
func swapOut(s *mem.SwapMemoryStat) float64     { return float64(s.Sout) }

func swapField(f func(*mem.SwapMemoryStat) float64) strategy {
	return func(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
		s, err := b.exec.Stats().SwapMemory(ctx)
		if err != nil {
			return nil, err
		}
		return f(s), nil
	}
}

func systemDiskPercent(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
	u, err := b.exec.Stats().DiskUsage(ctx, "/")
	if err != nil {
		return nil, err
	}
	return u.UsedPercent, nil
}

func diskPercent(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	path, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	u, err := b.exec.Stats().DiskUsage(ctx, path)
	if err != nil {
		return nil, err
	}
	return u.UsedPercent, nil
}

func interfaceIP(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	name, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	ip, err := b.exec.Stats().InterfaceIP(ctx, name)
	if err != nil {
		return nil, err
	}
	return ip, nil
}

// processPID reports lookup failures as process_exceptions codes.
func processPID(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	name, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	pid, err := b.exec.Stats().ProcessPID(ctx, name)
	switch {
	case err == nil:
		return float64(pid), nil
	case errors.Is(err, plugin.ErrZombieProcess):
		return float64(pidZombie), nil
	case errors.Is(err, plugin.ErrPermissionDenied):
		return float64(pidAccessDenied), nil
	case errors.Is(err, plugin.ErrNotFound):
		return float64(pidNotFound), nil
	default:
		return nil, err
	}
}

func requireParam(req plugin.VariableRequest) (string, error) {
	p := strings.TrimSpace(req.Parameter)
	if p == "" {
		return "", fmt.Errorf("%w: metric %d needs a parameter", plugin.ErrInvalidParameter, req.Metric)
	}
	return p, nil
}
