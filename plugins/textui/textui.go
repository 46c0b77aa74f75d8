package textui

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	plugin "systemstat/base"
	"systemstat/plugins"
	"systemstat/plugins/snmp"
	"systemstat/plugins/systemstat"
)

var _ plugin.Plugin = (*textuiPlugin)(nil)

// textuiPlugin shows devices and their latest samples in the terminal.
type textuiPlugin struct {
	plugin.BasePlugin
}

// Name returns the name of the plugin.
func (p *textuiPlugin) Name() string {
	return "textui"
}

// OnCommand handles "watch".
func (p *textuiPlugin) OnCommand(ctx context.Context, args map[string]string) error {
	if args["action"] != "watch" {
		return p.BasePlugin.OnCommand(ctx, args)
	}
	names := make([]string, 0, len(p.Controller.Config.Devices))
	for name := range p.Controller.Config.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("no devices configured")
	}

	interval := p.Controller.Config.PollInterval
	if interval <= 0 {
		interval = plugin.DefaultPollInterval
	}
	m := newModel(names, interval, p.loader(ctx))
	if _, err := tea.NewProgram(m, tea.WithContext(ctx), tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to start TUI: %w", err)
	}
	return nil
}

// loader reads the latest stored samples, or collects live when no store is
// configured.
func (p *textuiPlugin) loader(ctx context.Context) loadFunc {
	c := p.Controller
	if c.Store != nil {
		return func(name string) ([]sampleRow, error) {
			samples, err := c.Store.LatestSamples(ctx, name)
			if err != nil {
				return nil, err
			}
			rows := make([]sampleRow, len(samples))
			for i, s := range samples {
				rows[i] = sampleRow{ID: s.VariableID, Value: s.Text, Kind: s.ErrorKind, At: s.CollectedAt}
				if s.Text == "" && s.ValueNum != nil {
					rows[i].Value = strconv.FormatFloat(*s.ValueNum, 'f', -1, 64)
				}
			}
			return rows, nil
		}
	}

	d := systemstat.NewDispatcher(c.Logger,
		systemstat.WithUPSReader(snmp.NewReader(c.Logger)))
	return func(name string) ([]sampleRow, error) {
		dev := c.Config.Devices[name]
		results, err := d.Collect(ctx, dev, dev.Variables)
		if err != nil {
			return nil, err
		}
		rows := make([]sampleRow, 0, len(results))
		for _, r := range results {
			row := sampleRow{ID: r.VariableID, Kind: plugin.ErrorKind(r.Err), At: r.Timestamp}
			if r.Value != nil {
				row.Value = fmt.Sprint(r.Value)
			}
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
		return rows, nil
	}
}

func init() {
	plugins.Register(&textuiPlugin{})
}

// --- TUI Model, Update, View ---

var (
	appStyle   = lipgloss.NewStyle().Padding(1, 2)
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFDF5")).
			Background(lipgloss.Color("#25A065")).
			Padding(0, 1)

	upStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	downStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))

	itemStyle         = lipgloss.NewStyle().PaddingLeft(2).Width(40)
	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Background(lipgloss.Color("236")).
				Bold(true).
				Reverse(true).
				Width(40)
	detailStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2)
	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// sampleRow is one variable as displayed.
type sampleRow struct {
	ID    string
	Value string
	Kind  string // error kind, empty on success
	At    time.Time
}

type loadFunc func(device string) ([]sampleRow, error)

type tickMsg time.Time

// refreshMsg carries one full reload.
type refreshMsg struct {
	rows map[string][]sampleRow
	errs map[string]error
}

type mode int

const (
	modeList mode = iota
	modeDetail
)

type model struct {
	devices  []string
	rows     map[string][]sampleRow
	errs     map[string]error
	cursor   int
	mode     mode
	interval time.Duration
	load     loadFunc
	updated  time.Time
}

func newModel(devices []string, interval time.Duration, load loadFunc) model {
	return model{
		devices:  devices,
		rows:     map[string][]sampleRow{},
		errs:     map[string]error{},
		interval: interval,
		load:     load,
	}
}

func (m model) Init() tea.Cmd {
	return m.refresh()
}

func (m model) refresh() tea.Cmd {
	devices, load := m.devices, m.load
	return func() tea.Msg {
		msg := refreshMsg{rows: map[string][]sampleRow{}, errs: map[string]error{}}
		for _, name := range devices {
			rows, err := load(name)
			if err != nil {
				msg.errs[name] = err
				continue
			}
			msg.rows[name] = rows
		}
		return msg
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case refreshMsg:
		m.rows, m.errs = msg.rows, msg.errs
		m.updated = time.Now()
		return m, m.tick()

	case tickMsg:
		return m, m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.mode == modeList && m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.mode == modeList && m.cursor < len(m.devices)-1 {
				m.cursor++
			}
		case "enter":
			if m.mode == modeList && len(m.devices) > 0 {
				m.mode = modeDetail
			}
		case "esc":
			m.mode = modeList
		case "r":
			return m, m.refresh()
		}
	}
	return m, nil
}

// status summarizes a device: up when every sample succeeded, down when none
// did or loading failed, warning otherwise.
func (m model) status(name string) string {
	if m.errs[name] != nil {
		return "down"
	}
	rows, ok := m.rows[name]
	if !ok || len(rows) == 0 {
		return ""
	}
	failed := 0
	for _, r := range rows {
		if r.Kind != "" {
			failed++
		}
	}
	switch failed {
	case 0:
		return "up"
	case len(rows):
		return "down"
	default:
		return "warning"
	}
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case "up":
		return upStyle
	case "down":
		return downStyle
	case "warning":
		return warningStyle
	default:
		return lipgloss.NewStyle()
	}
}

func (m model) View() string {
	var s strings.Builder

	if m.mode == modeDetail && len(m.devices) > 0 {
		name := m.devices[m.cursor]
		s.WriteString(titleStyle.Render("Device "+name) + "\n\n")
		var body strings.Builder
		if err := m.errs[name]; err != nil {
			fmt.Fprintf(&body, "Error: %v\n", err)
		}
		for _, r := range m.rows[name] {
			value := r.Value
			if r.Kind != "" {
				value = statusStyle("down").Render(r.Kind)
			}
			fmt.Fprintf(&body, "%-24s %-32s %s\n", r.ID, firstLine(value), r.At.Local().Format(time.TimeOnly))
		}
		if body.Len() == 0 {
			body.WriteString("no samples yet\n")
		}
		s.WriteString(detailStyle.Render(body.String()) + "\n")
		s.WriteString(helpStyle.Render("\nesc: back  r: refresh  q: quit") + "\n")
		return appStyle.Render(s.String())
	}

	s.WriteString(titleStyle.Render("Devices") + "\n\n")
	for i, name := range m.devices {
		st := m.status(name)
		row := fmt.Sprintf("%s (%d variables)", name, len(m.rows[name]))
		style := itemStyle
		if m.cursor == i {
			style = selectedItemStyle
		}
		s.WriteString(style.Foreground(statusStyle(st).GetForeground()).Render(row) + "\n")
	}
	if !m.updated.IsZero() {
		s.WriteString(helpStyle.Render("\nupdated "+m.updated.Format(time.TimeOnly)) + "\n")
	}
	s.WriteString(helpStyle.Render("\nenter: details  r: refresh  q: quit") + "\n")
	return appStyle.Render(s.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
