package systemstat

import (
	"context"
	"fmt"
	"sync"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"systemstat/base"
)

// fakeExec is a scripted plugin.Executor.
type fakeExec struct {
	mu     sync.Mutex
	cmds   map[string]plugin.CommandResult
	files  map[string]plugin.FileInfo
	dirs   map[string][]plugin.FileInfo
	stats  *fakeStats
	ran    []string
	closed bool
}

func newFakeExec() *fakeExec {
	return &fakeExec{
		cmds:  map[string]plugin.CommandResult{},
		files: map[string]plugin.FileInfo{},
		dirs:  map[string][]plugin.FileInfo{},
		stats: &fakeStats{
			cpu:    12.5,
			vm:     &mem.VirtualMemoryStat{Total: 1000, Available: 600, Used: 300, Free: 200, UsedPercent: 30, Active: 50, Inactive: 60, Buffers: 70, Cached: 80},
			swap:   &mem.SwapMemoryStat{Total: 100, Used: 25, Free: 75, UsedPercent: 25, Sin: 4096, Sout: 8192},
			disks:  map[string]*disk.UsageStat{"/": {Path: "/", UsedPercent: 41.5}, "/var": {Path: "/var", UsedPercent: 10}},
			ips:    map[string]string{"eth0": "192.168.1.10"},
			procs:  map[string]error{},
			pids:   map[string]int32{"sshd": 812},
			mounts: map[string]bool{"/mnt/data": true},
		},
	}
}

func (f *fakeExec) RunCommand(ctx context.Context, cmd string) (plugin.CommandResult, error) {
	f.mu.Lock()
	f.ran = append(f.ran, cmd)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return plugin.CommandResult{}, err
	}
	res, ok := f.cmds[cmd]
	if !ok {
		return plugin.CommandResult{ExitCode: 127, Stderr: "sh: " + cmd + ": not found"}, nil
	}
	return res, nil
}

func (f *fakeExec) StatPath(_ context.Context, path string) (plugin.FileInfo, error) {
	fi, ok := f.files[path]
	if !ok {
		return plugin.FileInfo{}, fmt.Errorf("%w: %s", plugin.ErrNotFound, path)
	}
	return fi, nil
}

func (f *fakeExec) ListDirectory(_ context.Context, dir string) ([]plugin.FileInfo, error) {
	entries, ok := f.dirs[dir]
	if !ok {
		return nil, fmt.Errorf("%w: %s", plugin.ErrNotFound, dir)
	}
	return entries, nil
}

func (f *fakeExec) CheckReachable(context.Context) (bool, error) { return true, nil }
func (f *fakeExec) Stats() plugin.HostStats                      { return f.stats }

func (f *fakeExec) Close() error {
	f.closed = true
	return nil
}

func (f *fakeExec) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

type fakeStats struct {
	cpu    float64
	vm     *mem.VirtualMemoryStat
	swap   *mem.SwapMemoryStat
	disks  map[string]*disk.UsageStat
	ips    map[string]string
	pids   map[string]int32
	procs  map[string]error
	mounts map[string]bool
}

func (s *fakeStats) CPUPercent(context.Context) (float64, error) { return s.cpu, nil }
func (s *fakeStats) VirtualMemory(context.Context) (*mem.VirtualMemoryStat, error) {
	return s.vm, nil
}
func (s *fakeStats) SwapMemory(context.Context) (*mem.SwapMemoryStat, error) { return s.swap, nil }

func (s *fakeStats) DiskUsage(_ context.Context, path string) (*disk.UsageStat, error) {
	u, ok := s.disks[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", plugin.ErrNotFound, path)
	}
	return u, nil
}

func (s *fakeStats) InterfaceIP(_ context.Context, name string) (string, error) {
	ip, ok := s.ips[name]
	if !ok {
		return "", fmt.Errorf("%w: interface %s", plugin.ErrNotFound, name)
	}
	return ip, nil
}

func (s *fakeStats) ProcessPID(_ context.Context, name string) (int32, error) {
	if err, ok := s.procs[name]; ok {
		return 0, err
	}
	pid, ok := s.pids[name]
	if !ok {
		return 0, fmt.Errorf("%w: process %s", plugin.ErrNotFound, name)
	}
	return pid, nil
}

func (s *fakeStats) IsMountPoint(_ context.Context, path string) (bool, error) {
	return s.mounts[path], nil
}

// fakeFTP records the last listing request.
type fakeFTP struct {
	entries []plugin.FileInfo
	addr    string
	user    string
	dir     string
}

func (f *fakeFTP) List(_ context.Context, addr, user, _ string, dir string) ([]plugin.FileInfo, error) {
	f.addr, f.user, f.dir = addr, user, dir
	return f.entries, nil
}
