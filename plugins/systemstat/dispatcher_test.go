package systemstat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"systemstat/base"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(t *testing.T, exec *fakeExec, opts ...Option) *Dispatcher {
	t.Helper()
	defaults := []Option{
		WithResolver(func(context.Context, plugin.DeviceConfig) (plugin.Executor, error) { return exec, nil }),
		WithClock(func() time.Time { return fixedNow }),
	}
	return NewDispatcher(zaptest.NewLogger(t), append(defaults, opts...)...)
}

func localDevice() plugin.DeviceConfig {
	return plugin.DeviceConfig{Name: "srv1", Mode: plugin.ModeLocal}
}

func req(id string, code plugin.MetricCode, param string) plugin.VariableRequest {
	return plugin.VariableRequest{ID: id, Metric: code, Parameter: param}
}

func TestCollectHostStats(t *testing.T) {
	exec := newFakeExec()
	d := newTestDispatcher(t, exec)

	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("cpu", CPUPercent, ""),
		req("mem_total", MemTotal, ""),
		req("mem_pct", MemPercent, ""),
		req("mem_cached", MemCached, ""),
		req("swap_sout", SwapOut, ""),
		req("root", SystemDiskPercent, ""),
		req("var", DiskPercent, "/var"),
		req("ip", NetworkIPAddress, "eth0"),
		req("pid", ProcessPID, "sshd"),
		req("mounted", IsMounted, "/mnt/data"),
	})
	require.NoError(t, err)

	want := map[string]any{
		"cpu":        12.5,
		"mem_total":  1000.0,
		"mem_pct":    30.0,
		"mem_cached": 80.0,
		"swap_sout":  8192.0,
		"root":       41.5,
		"var":        10.0,
		"ip":         "192.168.1.10",
		"pid":        812.0,
		"mounted":    true,
	}
	require.Len(t, res, len(want))
	for id, v := range want {
		assert.NoError(t, res[id].Err, id)
		assert.Equal(t, v, res[id].Value, id)
		assert.Equal(t, id, res[id].VariableID)
		assert.Equal(t, fixedNow, res[id].Timestamp)
	}
	assert.True(t, exec.closed)
}

func TestCollectMissingParameter(t *testing.T) {
	d := newTestDispatcher(t, newFakeExec())
	for _, code := range []plugin.MetricCode{DiskPercent, NetworkIPAddress, ProcessPID, RunCommand, PathModTime, IsMounted, SystemdUnitEnabled} {
		res, err := d.CollectOne(context.Background(), localDevice(), req("x", code, "  "))
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, plugin.ErrInvalidParameter, "code %d", code)
		assert.Nil(t, res.Value)
	}
}

func TestProcessExceptions(t *testing.T) {
	exec := newFakeExec()
	exec.stats.procs["zed"] = fmt.Errorf("wrapped: %w", plugin.ErrZombieProcess)
	exec.stats.procs["root-only"] = plugin.ErrPermissionDenied
	d := newTestDispatcher(t, exec)

	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("zombie", ProcessPID, "zed"),
		req("denied", ProcessPID, "root-only"),
		req("missing", ProcessPID, "ghost"),
	})
	require.NoError(t, err)
	assert.Equal(t, -1.0, res["zombie"].Value)
	assert.Equal(t, -2.0, res["denied"].Value)
	assert.Equal(t, -3.0, res["missing"].Value)
	for _, r := range res {
		assert.NoError(t, r.Err)
	}
}

func TestRunCommand(t *testing.T) {
	exec := newFakeExec()
	exec.cmds["nproc"] = plugin.CommandResult{Stdout: "8\n"}
	exec.cmds["hostname"] = plugin.CommandResult{Stdout: "  srv1.lan \n"}
	exec.cmds["false"] = plugin.CommandResult{ExitCode: 1, Stderr: "nope"}
	d := newTestDispatcher(t, exec)

	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("n", RunCommand, "nproc"),
		req("h", RunCommand, "hostname"),
		req("f", RunCommand, "false"),
	})
	require.NoError(t, err)
	assert.Equal(t, 8.0, res["n"].Value)
	assert.Equal(t, "srv1.lan", res["h"].Value)
	assert.Equal(t, 1.0, res["f"].Value)
	assert.ErrorIs(t, res["f"].Err, plugin.ErrCommandFailed)
}

func TestSystemdMapping(t *testing.T) {
	exec := newFakeExec()
	exec.cmds["systemctl is-enabled ssh.service"] = plugin.CommandResult{Stdout: "enabled\n"}
	exec.cmds["systemctl is-active ssh.service"] = plugin.CommandResult{Stdout: "active\n"}
	exec.cmds["systemctl is-enabled masked.service"] = plugin.CommandResult{Stdout: "masked\n", ExitCode: 1}
	exec.cmds["systemctl is-active failed.service"] = plugin.CommandResult{Stdout: "failed\n", ExitCode: 3}
	exec.cmds["systemctl is-enabled ghost.service"] = plugin.CommandResult{ExitCode: 1, Stderr: "Failed to get unit file state"}
	exec.cmds["systemctl is-active ghost.service"] = plugin.CommandResult{Stdout: "unknown-state\n", ExitCode: 4}
	d := newTestDispatcher(t, exec)

	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("e", SystemdUnitEnabled, "ssh.service"),
		req("a", SystemdUnitActive, "ssh.service"),
		req("m", SystemdUnitEnabled, "masked.service"),
		req("f", SystemdUnitActive, "failed.service"),
		req("ge", SystemdUnitEnabled, "ghost.service"),
		req("ga", SystemdUnitActive, "ghost.service"),
		req("q", SystemdUnitActive, "it's; rm -rf /"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res["e"].Value)
	assert.Equal(t, 2.0, res["a"].Value)
	assert.Equal(t, 5.0, res["m"].Value)
	assert.Equal(t, 4.0, res["f"].Value)
	assert.Equal(t, 13.0, res["ge"].Value)
	assert.Equal(t, 7.0, res["ga"].Value)
	assert.Equal(t, 7.0, res["q"].Value)
	for id, r := range res {
		assert.NoError(t, r.Err, id)
	}
	assert.Contains(t, exec.commands(), `systemctl is-active 'it'"'"'s; rm -rf /'`)
}

func TestFilesystemMetrics(t *testing.T) {
	exec := newFakeExec()
	mtime := time.UnixMilli(1_700_000_000_250)
	exec.files["/etc/hosts"] = plugin.FileInfo{Name: "hosts", ModTime: mtime}
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	exec.dirs["/var/log"] = []plugin.FileInfo{
		{Name: "c.log", ModTime: t0.Add(2 * time.Hour)},
		{Name: "a.log", ModTime: t0},
		{Name: "b.log", ModTime: t0.Add(time.Hour)},
	}
	exec.dirs["."] = []plugin.FileInfo{{Name: "only", ModTime: t0}}
	d := newTestDispatcher(t, exec)

	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("mtime", PathModTime, "/etc/hosts"),
		req("gone", PathModTime, "/nope"),
		{ID: "first", Metric: DirectoryListing, Parameter: "first 2", Path: "/var/log"},
		{ID: "last", Metric: DirectoryListing, Parameter: "LAST 2", Path: "/var/log"},
		{ID: "all", Metric: DirectoryListing, Parameter: " all ", Path: "/var/log"},
		{ID: "cwd", Metric: DirectoryListing, Parameter: "all"},
		{ID: "bad", Metric: DirectoryListing, Parameter: "newest 3", Path: "/var/log"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1_700_000_000.25, res["mtime"].Value)
	assert.ErrorIs(t, res["gone"].Err, plugin.ErrNotFound)
	assert.Equal(t, "a.log\nb.log", res["first"].Value)
	assert.Equal(t, "c.log\nb.log", res["last"].Value)
	assert.Equal(t, "a.log\nb.log\nc.log", res["all"].Value)
	assert.Equal(t, "only", res["cwd"].Value)
	assert.ErrorIs(t, res["bad"].Err, plugin.ErrInvalidParameter)
}

func TestFTPListing(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ftp := &fakeFTP{entries: []plugin.FileInfo{
		{Name: "new.csv", ModTime: t0.Add(time.Minute)},
		{Name: "old.csv", ModTime: t0},
	}}
	d := newTestDispatcher(t, newFakeExec(), WithFTPLister(ftp))
	dev := localDevice()
	dev.Username = "logger"

	res, err := d.CollectOne(context.Background(), dev,
		plugin.VariableRequest{ID: "f", Metric: FTPDirectoryListing, Parameter: "ftp.example.com last 1", Path: "/exports"})
	require.NoError(t, err)
	require.NoError(t, res.Err)
	assert.Equal(t, "new.csv", res.Value)
	assert.Equal(t, "ftp.example.com:21", ftp.addr)
	assert.Equal(t, "logger", ftp.user)
	assert.Equal(t, "/exports", ftp.dir)

	res, err = d.CollectOne(context.Background(), dev,
		plugin.VariableRequest{ID: "f", Metric: FTPDirectoryListing, Parameter: "10.0.0.9:2121 all"})
	require.NoError(t, err)
	assert.Equal(t, "old.csv\nnew.csv", res.Value)
	assert.Equal(t, "10.0.0.9:2121", ftp.addr)
	assert.Equal(t, "/", ftp.dir)

	res, err = d.CollectOne(context.Background(), dev,
		plugin.VariableRequest{ID: "f", Metric: FTPDirectoryListing, Parameter: "all"})
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, plugin.ErrInvalidParameter)
}

func TestTimestampOffsets(t *testing.T) {
	d := newTestDispatcher(t, newFakeExec())
	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("zero", Timestamp, ""),
		req("five", Timestamp, "5"),
		req("bad", Timestamp, "bad"),
		req("frac", Timestamp, "-1.2345"),
	})
	require.NoError(t, err)

	ms := func(id string) int64 {
		v, ok := res[id].Value.(float64)
		require.True(t, ok, id)
		require.NoError(t, res[id].Err, id)
		return int64(v*1000 + 0.5)
	}
	diff := ms("five") - ms("zero")
	assert.GreaterOrEqual(t, diff, int64(5000))
	assert.LessOrEqual(t, diff, int64(5001))
	assert.Equal(t, ms("zero"), ms("bad"))
	assert.Equal(t, fixedNow.UnixMilli(), ms("zero"))
	assert.Equal(t, fixedNow.UnixMilli()-1234, ms("frac"))
}

func TestUPSApcaccessReadOnce(t *testing.T) {
	exec := newFakeExec()
	exec.cmds[plugin.DefaultUPSCommand] = plugin.CommandResult{Stdout: apcaccessOutput}
	d := newTestDispatcher(t, exec)

	var reqs []plugin.VariableRequest
	for _, code := range []plugin.MetricCode{UPSOnline, UPSLineVoltage, UPSBatteryVoltage, UPSBatteryCharge, UPSBatteryTimeLeft, UPSLoad} {
		reqs = append(reqs, req(fmt.Sprint(code), code, ""))
	}
	res, err := d.Collect(context.Background(), localDevice(), reqs)
	require.NoError(t, err)

	assert.Equal(t, true, res["100"].Value)
	assert.Equal(t, 229.0, res["101"].Value)
	assert.Equal(t, 27.1, res["102"].Value)
	assert.Equal(t, 100.0, res["103"].Value)
	assert.Equal(t, 46.5, res["104"].Value)
	assert.Equal(t, 12.0, res["105"].Value)
	assert.Len(t, exec.commands(), 1)
}

type fakeUPSReader struct {
	calls  int
	target plugin.SNMPTarget
}

func (f *fakeUPSReader) ReadUPS(_ context.Context, target plugin.SNMPTarget, _ time.Duration) (plugin.UPSStatus, error) {
	f.calls++
	f.target = target
	load := 33.0
	return plugin.UPSStatus{Status: "ONBATT", Load: &load}, nil
}

func TestUPSSNMPSource(t *testing.T) {
	reader := &fakeUPSReader{}
	exec := newFakeExec()
	d := newTestDispatcher(t, exec, WithUPSReader(reader))
	dev := plugin.DeviceConfig{Name: "rack", Mode: plugin.ModeRemote, Host: "10.0.0.7",
		UPS: &plugin.UPSConfig{Source: "snmp"}}

	res, err := d.Collect(context.Background(), dev, []plugin.VariableRequest{
		req("online", UPSOnline, ""),
		req("load", UPSLoad, ""),
		req("charge", UPSBatteryCharge, ""),
	})
	require.NoError(t, err)
	assert.Equal(t, false, res["online"].Value)
	assert.Equal(t, 33.0, res["load"].Value)
	assert.ErrorIs(t, res["charge"].Err, plugin.ErrNotFound)
	assert.Equal(t, 1, reader.calls)
	assert.Equal(t, "10.0.0.7", reader.target.Host)
	assert.Equal(t, "public", reader.target.Community)
	assert.Empty(t, exec.commands())
	assert.Empty(t, dev.UPS.SNMP.Community, "caller config untouched")
}

func TestUnreachableDevice(t *testing.T) {
	blackhole := func(ctx context.Context, _ plugin.DeviceConfig) (plugin.Executor, error) {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: dial: %v", plugin.ErrConnection, ctx.Err())
	}
	d := NewDispatcher(zaptest.NewLogger(t), WithResolver(blackhole))
	dev := plugin.DeviceConfig{Name: "far", Mode: plugin.ModeRemote, Host: "192.0.2.1", Timeout: 200 * time.Millisecond}

	reqs := []plugin.VariableRequest{
		req("cpu", CPUPercent, ""),
		req("mem", MemPercent, ""),
		req("disk", DiskPercent, "/"),
		req("cmd", RunCommand, "uptime"),
		req("unit", SystemdUnitActive, "ssh"),
		req("avail", SSHAvailability, ""),
		req("ts", Timestamp, ""),
	}

	start := time.Now()
	res, err := d.Collect(context.Background(), dev, reqs)
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Less(t, elapsed, dev.Timeout+500*time.Millisecond)

	for _, id := range []string{"cpu", "mem", "disk", "cmd", "unit"} {
		assert.Nil(t, res[id].Value, id)
		assert.ErrorIs(t, res[id].Err, plugin.ErrUnreachable, id)
		assert.Equal(t, "Unreachable", plugin.ErrorKind(res[id].Err), id)
	}
	assert.Equal(t, false, res["avail"].Value)
	assert.NoError(t, res["avail"].Err)
	assert.IsType(t, float64(0), res["ts"].Value)
	assert.NoError(t, res["ts"].Err)
}

func TestUnknownCodeOmitted(t *testing.T) {
	d := newTestDispatcher(t, newFakeExec())
	res, err := d.Collect(context.Background(), localDevice(), []plugin.VariableRequest{
		req("ok", CPUPercent, ""),
		req("nope", 16, ""),
		req("nope2", 999, ""),
	})
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Contains(t, res, "ok")

	_, err = d.CollectOne(context.Background(), localDevice(), req("nope", 16, ""))
	assert.ErrorIs(t, err, plugin.ErrUnsupported)
}

func TestCollectIDs(t *testing.T) {
	dev := localDevice()
	dev.Variables = []plugin.VariableRequest{req("cpu", CPUPercent, ""), req("ts", Timestamp, "")}
	d := newTestDispatcher(t, newFakeExec())

	res, err := d.CollectIDs(context.Background(), dev, NewConfigSource(dev), []string{"cpu", "ghost", "ts"})
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.NotContains(t, res, "ghost")
}

func TestInvalidConfigFailsBatch(t *testing.T) {
	exec := newFakeExec()
	d := newTestDispatcher(t, exec)
	_, err := d.Collect(context.Background(), plugin.DeviceConfig{Name: "x", Mode: plugin.ModeRemote},
		[]plugin.VariableRequest{req("cpu", CPUPercent, "")})
	assert.ErrorIs(t, err, plugin.ErrInvalidConfig)
	assert.Empty(t, exec.commands())
}

func TestCollectDoesNotMutateInputs(t *testing.T) {
	exec := newFakeExec()
	exec.cmds[plugin.DefaultUPSCommand] = plugin.CommandResult{Stdout: apcaccessOutput}
	d := newTestDispatcher(t, exec)

	dev := plugin.DeviceConfig{Name: "srv1", Mode: "local", UPS: &plugin.UPSConfig{}}
	snapshot := dev
	ups := *dev.UPS
	catalogBefore := Catalog()
	reqs := []plugin.VariableRequest{req("ups", UPSOnline, ""), req("cpu", CPUPercent, "")}

	first, err := d.Collect(context.Background(), dev, reqs)
	require.NoError(t, err)
	second, err := d.Collect(context.Background(), dev, reqs)
	require.NoError(t, err)

	assert.Equal(t, snapshot.Port, dev.Port)
	assert.Equal(t, snapshot.Timeout, dev.Timeout)
	assert.Equal(t, ups, *dev.UPS)
	assert.Equal(t, catalogKeys(catalogBefore), catalogKeys(Catalog()))
	assert.Equal(t, first["cpu"].Value, second["cpu"].Value)
	assert.Equal(t, first["ups"].Value, second["ups"].Value)
}

func catalogKeys(descs []Descriptor) []string {
	keys := make([]string, len(descs))
	for i, d := range descs {
		keys[i] = fmt.Sprintf("%d/%s/%s/%t", d.Code, d.Label, d.Syntax, d.Remote)
	}
	return keys
}

const apcaccessOutput = `APC      : 001,036,0872
DATE     : 2025-03-01 12:00:00 +0000
HOSTNAME : srv1
STATUS   : ONLINE
LINEV    : 229.0 Volts
LOADPCT  : 12.0 Percent
BCHARGE  : 100.0 Percent
TIMELEFT : 46.5 Minutes
BATTV    : 27.1 Volts
END APC  : 2025-03-01 12:00:01 +0000
`
