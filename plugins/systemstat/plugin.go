package systemstat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"systemstat/base"
	"systemstat/plugins"
	"systemstat/store"
)

// systemstatPlugin exposes the catalog and provisions code tables.
type systemstatPlugin struct {
	plugin.BasePlugin
}

func init() {
	plugins.Register(&systemstatPlugin{})
}

func (p *systemstatPlugin) Name() string {
	return "systemstat"
}

// OnCommand handles "catalog" and "provision".
func (p *systemstatPlugin) OnCommand(ctx context.Context, args map[string]string) error {
	switch args["action"] {
	case "catalog":
		return p.printCatalog(args["format"])
	case "provision":
		return p.provision(ctx)
	default:
		return p.BasePlugin.OnCommand(ctx, args)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)

func (p *systemstatPlugin) printCatalog(format string) error {
	out := p.Controller.Out
	descs := Catalog()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(descs)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("CODE", "LABEL", "PARAMETER", "REMOTE", "DICTIONARY").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, d := range descs {
		param := d.Syntax.String()
		if d.Help != "" {
			param = d.Help
		}
		t.Row(strconv.Itoa(int(d.Code)), d.Label, param, strconv.FormatBool(d.Remote), d.Dictionary)
	}
	_, err := fmt.Fprintln(out, t.Render())
	return err
}

// provision creates the code tables and stores configured variables. Running
// it again changes nothing.
func (p *systemstatPlugin) provision(ctx context.Context) error {
	st := p.Controller.Store
	if st == nil {
		return errors.New("provision: no database configured (database.url)")
	}
	log := p.Log("provision")

	for _, ct := range CodeTables() {
		entries := make([]store.DictionaryEntry, len(ct.Entries))
		for i, e := range ct.Entries {
			entries[i] = store.DictionaryEntry{Code: e.Code, Label: e.Label}
		}
		created, err := st.EnsureDictionary(ctx, ct.Name, entries)
		if err != nil {
			return err
		}
		log.Info("code table", zap.String("name", ct.Name), zap.Bool("created", created))
	}

	names := make([]string, 0, len(p.Controller.Config.Devices))
	for name := range p.Controller.Config.Devices {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		vars    []store.Variable
		unknown []string
	)
	for _, name := range names {
		for _, v := range p.Controller.Config.Devices[name].Variables {
			if _, ok := Lookup(v.Metric); !ok {
				unknown = append(unknown, fmt.Sprintf("%s/%s (metric %d)", name, v.ID, v.Metric))
				continue
			}
			vars = append(vars, store.Variable{
				ID:        v.ID,
				Device:    name,
				Metric:    int(v.Metric),
				Parameter: v.Parameter,
				Path:      v.Path,
			})
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("%w: variables with unknown metric codes: %s",
			plugin.ErrInvalidConfig, strings.Join(unknown, ", "))
	}
	if err := st.UpsertVariables(ctx, vars); err != nil {
		return err
	}
	log.Info("variables stored", zap.Int("count", len(vars)))
	return nil
}
