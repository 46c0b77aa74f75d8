package systemstat

import (
	"context"
	"sort"

	"systemstat/base"
)

// Metric codes understood by the dispatcher.
const (
	CPUPercent          plugin.MetricCode = 0
	MemTotal            plugin.MetricCode = 1
	MemAvailable        plugin.MetricCode = 2
	MemPercent          plugin.MetricCode = 3
	MemUsed             plugin.MetricCode = 4
	MemFree             plugin.MetricCode = 5
	MemActive           plugin.MetricCode = 6
	MemInactive         plugin.MetricCode = 7
	MemBuffers          plugin.MetricCode = 8
	MemCached           plugin.MetricCode = 9
	SwapTotal           plugin.MetricCode = 10
	SwapUsed            plugin.MetricCode = 11
	SwapFree            plugin.MetricCode = 12
	SwapPercent         plugin.MetricCode = 13
	SwapIn              plugin.MetricCode = 14
	SwapOut             plugin.MetricCode = 15
	SystemDiskPercent   plugin.MetricCode = 17
	DiskPercent         plugin.MetricCode = 18
	NetworkIPAddress    plugin.MetricCode = 19
	ProcessPID          plugin.MetricCode = 20
	RunCommand          plugin.MetricCode = 21
	SSHAvailability     plugin.MetricCode = 22
	PathModTime         plugin.MetricCode = 40
	IsMounted           plugin.MetricCode = 41
	UPSOnline           plugin.MetricCode = 100
	UPSLineVoltage      plugin.MetricCode = 101
	UPSBatteryVoltage   plugin.MetricCode = 102
	UPSBatteryCharge    plugin.MetricCode = 103
	UPSBatteryTimeLeft  plugin.MetricCode = 104
	UPSLoad             plugin.MetricCode = 105
	DirectoryListing    plugin.MetricCode = 200
	FTPDirectoryListing plugin.MetricCode = 201
	SystemdUnitEnabled  plugin.MetricCode = 250
	SystemdUnitActive   plugin.MetricCode = 251
	Timestamp           plugin.MetricCode = 300
)

// ParamSyntax describes what a metric expects in VariableRequest.Parameter.
type ParamSyntax int

const (
	SyntaxNone ParamSyntax = iota
	SyntaxPath
	SyntaxInterface
	SyntaxProcess
	SyntaxCommand
	SyntaxListing
	SyntaxFTPListing
	SyntaxUnit
	SyntaxOffset
)

// MarshalText renders the syntax by name in catalog output.
func (s ParamSyntax) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s ParamSyntax) String() string {
	switch s {
	case SyntaxPath:
		return "path"
	case SyntaxInterface:
		return "interface"
	case SyntaxProcess:
		return "process"
	case SyntaxCommand:
		return "command"
	case SyntaxListing:
		return "listing"
	case SyntaxFTPListing:
		return "ftp-listing"
	case SyntaxUnit:
		return "unit"
	case SyntaxOffset:
		return "offset"
	default:
		return "none"
	}
}

// strategy produces the value of one request. Remote strategies always get a
// non-nil executor in b.
type strategy func(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error)

// Descriptor is one immutable catalog entry.
type Descriptor struct {
	Code       plugin.MetricCode `json:"code"`
	Label      string            `json:"label"`
	Syntax     ParamSyntax       `json:"syntax"`
	Help       string            `json:"help,omitempty"`
	Remote     bool              `json:"remote"`
	Dictionary string            `json:"dictionary,omitempty"`

	collect strategy
}

const (
	helpListing = "first N / last N / all, ordered by modification time. Path selects the directory."
	helpFTP     = "<host>[:port] first N / last N / all, e.g. ftp.example.com last 5. Path selects the directory."
	helpOffset  = "offset in seconds, positive means in the future; decimals up to the millisecond"
)

var catalog = []Descriptor{
	{Code: CPUPercent, Label: "cpu_percent", Remote: true, collect: cpuPercent},
	{Code: MemTotal, Label: "virtual_memory_usage_total", Remote: true, collect: vmField(memTotal)},
	{Code: MemAvailable, Label: "virtual_memory_usage_available", Remote: true, collect: vmField(memAvailable)},
	{Code: MemPercent, Label: "virtual_memory_usage_percent", Remote: true, collect: vmField(memPercent)},
	{Code: MemUsed, Label: "virtual_memory_usage_used", Remote: true, collect: vmField(memUsed)},
	{Code: MemFree, Label: "virtual_memory_usage_free", Remote: true, collect: vmField(memFree)},
	{Code: MemActive, Label: "virtual_memory_usage_active", Remote: true, collect: vmField(memActive)},
	{Code: MemInactive, Label: "virtual_memory_usage_inactive", Remote: true, collect: vmField(memInactive)},
	{Code: MemBuffers, Label: "virtual_memory_usage_buffers", Remote: true, collect: vmField(memBuffers)},
	{Code: MemCached, Label: "virtual_memory_usage_cached", Remote: true, collect: vmField(memCached)},
	{Code: SwapTotal, Label: "swap_memory_total", Remote: true, collect: swapField(swapTotal)},
	{Code: SwapUsed, Label: "swap_memory_used", Remote: true, collect: swapField(swapUsed)},
	{Code: SwapFree, Label: "swap_memory_free", Remote: true, collect: swapField(swapFree)},
	{Code: SwapPercent, Label: "swap_memory_percent", Remote: true, collect: swapField(swapPercent)},
	{Code: SwapIn, Label: "swap_memory_sin", Remote: true, collect: swapField(swapIn)},
	{Code: SwapOut, Label: "swap_memory_sout", Remote: true, collect: swapField(swapOut)},
	{Code: SystemDiskPercent, Label: "disk_usage_systemdisk_percent", Remote: true, collect: systemDiskPercent},
	{Code: DiskPercent, Label: "disk_usage_percent", Syntax: SyntaxPath, Help: "mount path, e.g. /var", Remote: true, collect: diskPercent},
	{Code: NetworkIPAddress, Label: "network_ip_address", Syntax: SyntaxInterface, Help: "interface name, e.g. eth0", Remote: true, collect: interfaceIP},
	{Code: ProcessPID, Label: "process_pid", Syntax: SyntaxProcess, Help: "process name", Remote: true, Dictionary: DictProcessExceptions, collect: processPID},
	{Code: RunCommand, Label: "run command", Syntax: SyntaxCommand, Help: "shell command; numeric output becomes a number", Remote: true, collect: runCommand},
	{Code: SSHAvailability, Label: "ssh availability", collect: availability},
	{Code: PathModTime, Label: "file or directory last modification time", Syntax: SyntaxPath, Help: "file or directory path", Remote: true, collect: pathModTime},
	{Code: IsMounted, Label: "is directory mounted", Syntax: SyntaxPath, Help: "directory path", Remote: true, collect: isMounted},
	{Code: UPSOnline, Label: "APCUPSD Online Status (True/False)", Remote: true, collect: upsOnline},
	{Code: UPSLineVoltage, Label: "APCUPSD Line Voltage", Remote: true, collect: upsField("LINEV", upsLineVoltage)},
	{Code: UPSBatteryVoltage, Label: "APCUPSD Battery Voltage", Remote: true, collect: upsField("BATTV", upsBatteryVoltage)},
	{Code: UPSBatteryCharge, Label: "APCUPSD Battery Charge in %", Remote: true, collect: upsField("BCHARGE", upsBatteryCharge)},
	{Code: UPSBatteryTimeLeft, Label: "APCUPSD Battery Time Left in Minutes", Remote: true, collect: upsField("TIMELEFT", upsTimeLeft)},
	{Code: UPSLoad, Label: "APCUPSD Load in %", Remote: true, collect: upsField("LOADPCT", upsLoad)},
	{Code: DirectoryListing, Label: "List first X/last X/all items of a directory", Syntax: SyntaxListing, Help: helpListing, Remote: true, collect: directoryListing},
	{Code: FTPDirectoryListing, Label: "List first X/last X/all items of a ftp directory", Syntax: SyntaxFTPListing, Help: helpFTP, collect: ftpListing},
	{Code: SystemdUnitEnabled, Label: "Systemd service is enabled", Syntax: SyntaxUnit, Help: "unit name, e.g. ssh.service", Remote: true, Dictionary: DictSystemdEnabled, collect: systemdEnabledState},
	{Code: SystemdUnitActive, Label: "Systemd service is active", Syntax: SyntaxUnit, Help: "unit name, e.g. ssh.service", Remote: true, Dictionary: DictSystemdActive, collect: systemdActiveState},
	{Code: Timestamp, Label: "timestamp (UTC). Use parameter to set offset.", Syntax: SyntaxOffset, Help: helpOffset, collect: timestamp},
}

var byCode = func() map[plugin.MetricCode]int {
	m := make(map[plugin.MetricCode]int, len(catalog))
	for i, d := range catalog {
		m[d.Code] = i
	}
	return m
}()

// Catalog returns a copy of every descriptor ordered by code.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Lookup returns the descriptor for code.
func Lookup(code plugin.MetricCode) (Descriptor, bool) {
	i, ok := byCode[code]
	if !ok {
		return Descriptor{}, false
	}
	return catalog[i], true
}
