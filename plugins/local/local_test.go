package local

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"systemstat/base"
)

func TestRunCommand(t *testing.T) {
	e := New()
	ctx := context.Background()

	res, err := e.RunCommand(ctx, "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	res, err = e.RunCommand(ctx, "echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
}

func TestRunCommandTimeout(t *testing.T) {
	for _, cmd := range []string{
		"sleep 5",
		"sleep 5; echo done",
		"sleep 5 & sleep 5; wait",
		"(sleep 5) | cat",
	} {
		t.Run(cmd, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()

			start := time.Now()
			_, err := New().RunCommand(ctx, cmd)
			require.ErrorIs(t, err, context.DeadlineExceeded)
			assert.Less(t, time.Since(start), 2*time.Second)
		})
	}
}

func TestListDirectoryAndStat(t *testing.T) {
	fs := afero.NewMemMapFs()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a.log", "b.log", "c.log"} {
		p := "/data/" + name
		require.NoError(t, afero.WriteFile(fs, p, []byte(name), 0o644))
		require.NoError(t, fs.Chtimes(p, base, base.Add(time.Duration(i)*time.Hour)))
	}

	e := New(WithFs(fs))
	ctx := context.Background()

	entries, err := e.ListDirectory(ctx, "/data")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	names := []string{entries[0].Name, entries[1].Name, entries[2].Name}
	assert.ElementsMatch(t, []string{"a.log", "b.log", "c.log"}, names)

	fi, err := e.StatPath(ctx, "/data/c.log")
	require.NoError(t, err)
	assert.Equal(t, base.Add(2*time.Hour), fi.ModTime.UTC())
	assert.False(t, fi.IsDir)

	_, err = e.StatPath(ctx, "/missing")
	assert.ErrorIs(t, err, plugin.ErrNotFound)

	_, err = e.ListDirectory(ctx, "/missing")
	assert.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestCheckReachable(t *testing.T) {
	ok, err := New().CheckReachable(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHostStats(t *testing.T) {
	ctx := context.Background()
	s := New().Stats()

	pct, err := s.CPUPercent(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pct, 0.0)

	vm, err := s.VirtualMemory(ctx)
	require.NoError(t, err)
	assert.Positive(t, vm.Total)

	_, err = s.SwapMemory(ctx)
	require.NoError(t, err)

	du, err := s.DiskUsage(ctx, "/")
	require.NoError(t, err)
	assert.Positive(t, du.Total)

	mounted, err := s.IsMountPoint(ctx, "/")
	require.NoError(t, err)
	assert.True(t, mounted)

	_, err = s.InterfaceIP(ctx, "no-such-iface0")
	assert.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestProcessPID(t *testing.T) {
	ctx := context.Background()
	s := New().Stats()

	_, err := s.ProcessPID(ctx, "no-such-process-xyz")
	assert.ErrorIs(t, err, plugin.ErrNotFound)

	pid, err := s.ProcessPID(ctx, processName(t))
	require.NoError(t, err)
	assert.Positive(t, pid)
}

// processName returns this test binary's process name as the kernel reports it.
func processName(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile("/proc/self/comm")
	if err != nil {
		t.Skip("no /proc")
	}
	return string(b[:len(b)-1])
}
