package textui

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	plugin "systemstat/base"
	"systemstat/plugins/systemstat"
)

func staticLoader(rows map[string][]sampleRow) loadFunc {
	return func(name string) ([]sampleRow, error) {
		r, ok := rows[name]
		if !ok {
			return nil, errors.New("no route to host")
		}
		return r, nil
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestRefreshAndStatus(t *testing.T) {
	now := time.Now()
	load := staticLoader(map[string][]sampleRow{
		"a": {{ID: "cpu", Value: "3.5", At: now}},
		"b": {{ID: "cpu", Value: "1", At: now}, {ID: "ups", Kind: "Unreachable", At: now}},
		"c": {{ID: "cpu", Kind: "Unreachable", At: now}},
	})
	m := newModel([]string{"a", "b", "c", "d"}, time.Minute, load)

	msg := m.Init()()
	next, cmd := m.Update(msg)
	require.NotNil(t, cmd, "refresh schedules the next tick")
	m = next.(model)

	assert.Equal(t, "up", m.status("a"))
	assert.Equal(t, "warning", m.status("b"))
	assert.Equal(t, "down", m.status("c"))
	assert.Equal(t, "down", m.status("d"))
	assert.False(t, m.updated.IsZero())
	assert.Contains(t, m.View(), "a (1 variables)")
}

func TestKeyNavigation(t *testing.T) {
	m := newModel([]string{"a", "b"}, time.Minute, staticLoader(map[string][]sampleRow{
		"b": {{ID: "listing", Value: "x.log\ny.log"}},
	}))
	next, _ := m.Update(m.Init()())
	m = next.(model)

	step := func(k string) {
		next, _ := m.Update(key(k))
		m = next.(model)
	}
	step("down")
	step("down")
	assert.Equal(t, 1, m.cursor)
	step("enter")
	assert.Equal(t, modeDetail, m.mode)
	assert.Contains(t, m.View(), "x.log …")
	step("down")
	assert.Equal(t, 1, m.cursor, "cursor frozen in detail view")
	step("esc")
	assert.Equal(t, modeList, m.mode)
	step("k")
	assert.Equal(t, 0, m.cursor)

	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTickTriggersRefresh(t *testing.T) {
	calls := 0
	m := newModel([]string{"a"}, time.Minute, func(string) ([]sampleRow, error) {
		calls++
		return nil, nil
	})
	_, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd)
	_, ok := cmd().(refreshMsg)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestLiveLoaderReadsSNMPUPS(t *testing.T) {
	// A UDP port nobody answers on.
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	cfg := &plugin.Config{Devices: map[string]plugin.DeviceConfig{
		"ups": {
			Mode:    plugin.ModeLocal,
			Timeout: 200 * time.Millisecond,
			UPS: &plugin.UPSConfig{Source: "snmp", SNMP: plugin.SNMPTarget{
				Host: "127.0.0.1", Port: pc.LocalAddr().(*net.UDPAddr).Port, Community: "public",
			}},
			Variables: []plugin.VariableRequest{{ID: "online", Metric: systemstat.UPSOnline}},
		},
	}}
	p := &textuiPlugin{}
	p.Init(plugin.NewController(cfg, zaptest.NewLogger(t)))

	rows, err := p.loader(context.Background())("ups")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "online", rows[0].ID)
	assert.NotEqual(t, "Unsupported", rows[0].Kind, "the live dispatcher queries the agent over SNMP")
	assert.Contains(t, []string{"ConnectionError", "Timeout"}, rows[0].Kind)
}
