package sshcollect

import (
	"errors"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// pageSize converts /proc/vmstat page counts to bytes, as gopsutil does.
const pageSize = 4 * 1024

// parseProcStat reads the aggregate "cpu" line of /proc/stat.
func parseProcStat(out string) (cpu.TimesStat, error) {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 5 || fields[0] != "cpu" {
			continue
		}
		v := make([]float64, 8)
		for i := 0; i < len(v) && i+1 < len(fields); i++ {
			v[i], _ = strconv.ParseFloat(fields[i+1], 64)
		}
		return cpu.TimesStat{
			CPU: "cpu-total", User: v[0], Nice: v[1], System: v[2], Idle: v[3],
			Iowait: v[4], Irq: v[5], Softirq: v[6], Steal: v[7],
		}, nil
	}
	return cpu.TimesStat{}, errors.New("/proc/stat: no cpu line")
}

// keyValues splits "Key: value" or "key value" lines; the delimiter is the
// first colon, or whitespace when there is none.
func keyValues(out string) map[string]uint64 {
	kv := make(map[string]uint64)
	for _, line := range strings.Split(out, "\n") {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			key, rest = fields[0], fields[1]
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		n, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		if len(fields) > 1 && strings.EqualFold(fields[1], "kB") {
			n *= 1024
		}
		kv[strings.TrimSpace(key)] = n
	}
	return kv
}

// parseMeminfo follows gopsutil's Linux arithmetic for the derived fields.
func parseMeminfo(out string) *mem.VirtualMemoryStat {
	kv := keyValues(out)
	v := &mem.VirtualMemoryStat{
		Total:     kv["MemTotal"],
		Free:      kv["MemFree"],
		Buffers:   kv["Buffers"],
		Cached:    kv["Cached"] + kv["SReclaimable"],
		Active:    kv["Active"],
		Inactive:  kv["Inactive"],
		Available: kv["MemAvailable"],
		Shared:    kv["Shmem"],
		SwapTotal: kv["SwapTotal"],
		SwapFree:  kv["SwapFree"],
	}
	if _, ok := kv["MemAvailable"]; !ok {
		v.Available = v.Cached + v.Free
	}
	if used := v.Free + v.Buffers + v.Cached; v.Total > used {
		v.Used = v.Total - used
	}
	if v.Total > 0 {
		v.UsedPercent = float64(v.Used) / float64(v.Total) * 100
	}
	return v
}

func parseSwap(meminfo, vmstat string) *mem.SwapMemoryStat {
	mi := keyValues(meminfo)
	vs := keyValues(vmstat)
	s := &mem.SwapMemoryStat{
		Total:   mi["SwapTotal"],
		Free:    mi["SwapFree"],
		Sin:     vs["pswpin"] * pageSize,
		Sout:    vs["pswpout"] * pageSize,
		PgIn:    vs["pgpgin"] * pageSize,
		PgOut:   vs["pgpgout"] * pageSize,
		PgFault: vs["pgfault"] * pageSize,
	}
	if s.Total > s.Free {
		s.Used = s.Total - s.Free
	}
	if s.Total > 0 {
		s.UsedPercent = float64(s.Used) / float64(s.Total) * 100
	}
	return s
}

// parseDf reads POSIX "df -P -k" output.
func parseDf(out string) (*disk.UsageStat, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return nil, errors.New("df: no data line")
	}
	// A long device name can wrap the data onto a second line.
	fields := strings.Fields(strings.Join(lines[1:], " "))
	if len(fields) < 6 {
		return nil, errors.New("df: short data line")
	}
	n := len(fields)
	total, err1 := strconv.ParseUint(fields[n-5], 10, 64)
	used, err2 := strconv.ParseUint(fields[n-4], 10, 64)
	free, err3 := strconv.ParseUint(fields[n-3], 10, 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return nil, err
	}
	u := &disk.UsageStat{
		Path:  fields[n-1],
		Total: total * 1024,
		Used:  used * 1024,
		Free:  free * 1024,
	}
	if used+free > 0 {
		u.UsedPercent = float64(used) / float64(used+free) * 100
	}
	return u, nil
}

// parseIPAddr returns the first address of "ip -o -4 addr" output.
func parseIPAddr(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] == "inet" {
				ip, _, _ := strings.Cut(fields[i+1], "/")
				return ip
			}
		}
	}
	return ""
}

// procState returns the state letter of a /proc/<pid>/stat line. The command
// name may contain spaces and parentheses, so the state follows the last ')'.
func procState(stat string) string {
	i := strings.LastIndexByte(stat, ')')
	if i < 0 {
		return ""
	}
	fields := strings.Fields(stat[i+1:])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
