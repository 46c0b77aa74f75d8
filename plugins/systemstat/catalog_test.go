package systemstat

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"systemstat/base"
)

func TestCatalogCodesUnique(t *testing.T) {
	seen := map[plugin.MetricCode]bool{}
	descs := Catalog()
	require.Len(t, descs, 35)
	for i, d := range descs {
		assert.False(t, seen[d.Code], "duplicate code %d", d.Code)
		seen[d.Code] = true
		assert.NotEmpty(t, d.Label)
		assert.NotNil(t, d.collect, "code %d", d.Code)
		if i > 0 {
			assert.Less(t, descs[i-1].Code, d.Code)
		}
	}
	_, ok := Lookup(16)
	assert.False(t, ok)
}

func TestCatalogRemoteFlags(t *testing.T) {
	local := map[plugin.MetricCode]bool{SSHAvailability: true, FTPDirectoryListing: true, Timestamp: true}
	for _, d := range Catalog() {
		assert.Equal(t, !local[d.Code], d.Remote, "code %d", d.Code)
	}
}

func TestCatalogCopy(t *testing.T) {
	descs := Catalog()
	descs[0].Label = "changed"
	d, ok := Lookup(CPUPercent)
	require.True(t, ok)
	assert.Equal(t, "cpu_percent", d.Label)
}

func TestCatalogJSON(t *testing.T) {
	d, ok := Lookup(DiskPercent)
	require.True(t, ok)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":18,"label":"disk_usage_percent","syntax":"path","help":"mount path, e.g. /var","remote":true}`, string(raw))
}

func TestCodeTables(t *testing.T) {
	tables := CodeTables()
	require.Len(t, tables, 3)
	assert.Equal(t, DictSystemdEnabled, tables[0].Name)
	assert.Len(t, tables[0].Entries, 14)
	assert.Len(t, tables[1].Entries, 8)
	assert.Equal(t, 13, codeOf(systemdEnabled, "bogus", 13))
	assert.Equal(t, 2, codeOf(systemdActive, "active", 7))

	tables[2].Entries[0].Label = "mutated"
	assert.Equal(t, "ZombieProcess", processExceptions[0].Label)
}

func TestParseListing(t *testing.T) {
	cases := []struct {
		in   string
		want listing
		ok   bool
	}{
		{"all", listing{mode: listAll}, true},
		{"First 3", listing{mode: listFirst, n: 3}, true},
		{"last 0", listing{mode: listLast, n: 0}, true},
		{"last -1", listing{}, false},
		{"last", listing{}, false},
		{"first x", listing{}, false},
		{"", listing{}, false},
		{"all 2", listing{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseListing(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, plugin.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestListingTieBreak(t *testing.T) {
	t0 := time.Unix(1000, 0)
	entries := []plugin.FileInfo{{Name: "b", ModTime: t0}, {Name: "a", ModTime: t0}, {Name: "z", ModTime: t0.Add(-time.Second)}}
	assert.Equal(t, "z\na\nb", listing{mode: listAll}.apply(entries))
	assert.Equal(t, "", listing{mode: listFirst}.apply(entries))
	assert.Equal(t, "b\na\nz", listing{mode: listLast, n: 10}.apply(entries))
	assert.Equal(t, "b", entries[0].Name, "input order untouched")
}

func TestParseOffset(t *testing.T) {
	cases := map[string]time.Duration{
		"":        0,
		"bad":     0,
		"NaN":     0,
		"1e12":    0,
		"5":       5 * time.Second,
		" 2.5 ":   2500 * time.Millisecond,
		"0.001":   time.Millisecond,
		"0.0019":  time.Millisecond,
		"-3.75":   -3750 * time.Millisecond,
		"-0.0005": 0,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseOffset(in), "offset %q", in)
	}
}

func TestFTPAddr(t *testing.T) {
	assert.Equal(t, "ftp.example.com:21", ftpAddr("ftp.example.com"))
	assert.Equal(t, "ftp.example.com:2121", ftpAddr("ftp.example.com:2121"))
	assert.Equal(t, "[::1]:21", ftpAddr("[::1]"))
}

func TestParseApcaccess(t *testing.T) {
	s, err := ParseApcaccess(apcaccessOutput)
	require.NoError(t, err)
	assert.True(t, s.Online())
	require.NotNil(t, s.LineVoltage)
	assert.Equal(t, 229.0, *s.LineVoltage)

	s, err = ParseApcaccess("STATUS   : ONBATT LOWBATT\nLINEV    : n/a\n")
	require.NoError(t, err)
	assert.False(t, s.Online())
	assert.Nil(t, s.LineVoltage)
	assert.Nil(t, s.Load)

	_, err = ParseApcaccess("\n")
	assert.Error(t, err)
}

func TestCommandValue(t *testing.T) {
	assert.Equal(t, 42.0, commandValue(" 42\n"))
	assert.Equal(t, -0.5, commandValue("-0.5"))
	assert.Equal(t, "up 3 days", commandValue("up 3 days\n"))
	assert.Equal(t, "", commandValue(""))
}

// TestLocalHostDefaults runs the real local executor.
func TestLocalHostDefaults(t *testing.T) {
	if testing.Short() {
		t.Skip("reads host statistics")
	}
	d := NewDispatcher(zaptest.NewLogger(t))
	var reqs []plugin.VariableRequest
	for _, code := range []plugin.MetricCode{CPUPercent, MemTotal, MemPercent, SwapTotal, SystemDiskPercent, SSHAvailability, Timestamp} {
		reqs = append(reqs, req(fmt.Sprint(code), code, ""))
	}
	res, err := d.Collect(context.Background(), plugin.DeviceConfig{Name: "self"}, reqs)
	require.NoError(t, err)
	require.Len(t, res, len(reqs))
	for id, r := range res {
		assert.NoError(t, r.Err, id)
		assert.NotNil(t, r.Value, id)
	}
	assert.Equal(t, true, res[fmt.Sprint(SSHAvailability)].Value)
}
