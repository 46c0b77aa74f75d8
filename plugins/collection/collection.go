package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"systemstat/base"
	"systemstat/plugins"
	"systemstat/plugins/snmp"
	"systemstat/plugins/systemstat"
	"systemstat/store"
)

// --- Plugin Implementation ---

// collectionPlugin runs collection cycles over the configured devices.
type collectionPlugin struct {
	plugin.BasePlugin
	dispatcher *systemstat.Dispatcher
}

func init() {
	plugins.Register(&collectionPlugin{})
}

// Name returns the plugin's name.
func (p *collectionPlugin) Name() string {
	return "Collection"
}

// Init builds the dispatcher once the controller logger is known.
func (p *collectionPlugin) Init(c *plugin.Controller) {
	p.BasePlugin.Init(c)
	p.dispatcher = systemstat.NewDispatcher(c.Logger,
		systemstat.WithUPSReader(snmp.NewReader(c.Logger)))
}

// OnCommand handles "collect" (one cycle, JSON on stdout) and "run" (poll
// until interrupted). Optional args: "device" limits the cycle to one device,
// "ids" is a comma separated list of variable ids.
func (p *collectionPlugin) OnCommand(ctx context.Context, args map[string]string) error {
	action := args["action"]
	if action != "collect" && action != "run" {
		return p.BasePlugin.OnCommand(ctx, args)
	}
	names, err := p.deviceNames(args["device"])
	if err != nil {
		return err
	}
	ids := splitIDs(args["ids"])

	if action == "run" {
		return p.run(ctx, names, ids)
	}
	return p.collectOnce(ctx, names, ids, args["output"])
}

func (p *collectionPlugin) deviceNames(only string) ([]string, error) {
	devices := p.Controller.Config.Devices
	if only != "" {
		if _, ok := devices[only]; !ok {
			return nil, fmt.Errorf("device %q not configured", only)
		}
		return []string{only}, nil
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no devices configured")
	}
	names := make([]string, 0, len(devices))
	for name := range devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// deviceResult is what one device contributes to a cycle.
type deviceResult struct {
	name    string
	samples map[string]plugin.SampleResult
	err     error
}

// collectOnce fans out one goroutine per device and prints the merged results.
func (p *collectionPlugin) collectOnce(ctx context.Context, names, ids []string, output string) error {
	var wg sync.WaitGroup
	resultsChan := make(chan deviceResult, len(names))

	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			resultsChan <- p.cycle(ctx, name, ids)
		}(name)
	}

	wg.Wait()
	close(resultsChan)

	finalResults := make(map[string]map[string]plugin.SampleResult, len(names))
	var failed []string
	for r := range resultsChan {
		if r.err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.name, r.err))
			continue
		}
		finalResults[r.name] = r.samples
	}

	jsonData, err := json.MarshalIndent(finalResults, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results to JSON: %w", err)
	}
	if output != "" {
		if err := os.WriteFile(output, jsonData, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	} else if _, err := fmt.Fprintln(p.Controller.Out, string(jsonData)); err != nil {
		return err
	}

	if len(failed) > 0 {
		sort.Strings(failed)
		return fmt.Errorf("collection failed for %d device(s): %s", len(failed), strings.Join(failed, "; "))
	}
	return nil
}

// cycle collects one device and persists the samples when a store is open.
func (p *collectionPlugin) cycle(ctx context.Context, name string, ids []string) deviceResult {
	dev := p.Controller.Config.Devices[name]
	if dev.Name == "" {
		dev.Name = name
	}
	log := p.Log("collection").With(
		zap.String("cycle", uuid.NewString()),
		zap.String("device", name))

	var (
		samples map[string]plugin.SampleResult
		err     error
	)
	if len(ids) > 0 {
		samples, err = p.dispatcher.CollectIDs(ctx, dev, p.source(dev), ids)
	} else {
		samples, err = p.dispatcher.Collect(ctx, dev, dev.Variables)
	}
	if err != nil {
		log.Error("collection failed", zap.Error(err))
		return deviceResult{name: name, err: err}
	}

	failed := 0
	for _, s := range samples {
		if s.Err != nil {
			failed++
		}
	}
	log.Info("collected", zap.Int("variables", len(samples)), zap.Int("failed", failed))

	if st := p.Controller.Store; st != nil && len(samples) > 0 {
		device := store.Device{Name: dev.Name, Mode: string(dev.Mode), Host: dev.Host}
		if dev.Mode == "" {
			device.Mode = string(plugin.ModeLocal)
		}
		if err := st.WriteBatch(ctx, device, toSamples(samples)); err != nil {
			log.Error("store write failed", zap.Error(err))
		} else {
			log.Debug("store: wrote samples", zap.Int("count", len(samples)))
		}
	}
	return deviceResult{name: name, samples: samples}
}

// source resolves ids for dev only: through the store when one is open,
// otherwise through dev's own configuration.
func (p *collectionPlugin) source(dev plugin.DeviceConfig) systemstat.VariableSource {
	if p.Controller.Store != nil {
		return systemstat.StoreSource{Store: p.Controller.Store, Device: dev.Name}
	}
	return systemstat.NewConfigSource(dev)
}

// toSamples converts results for the store, ordered by variable id.
func toSamples(results map[string]plugin.SampleResult) []store.Sample {
	out := make([]store.Sample, 0, len(results))
	for _, r := range results {
		out = append(out, toSample(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VariableID < out[j].VariableID })
	return out
}

func toSample(r plugin.SampleResult) store.Sample {
	s := store.Sample{
		VariableID:  r.VariableID,
		ErrorKind:   plugin.ErrorKind(r.Err),
		CollectedAt: r.Timestamp,
	}
	switch v := r.Value.(type) {
	case float64:
		s.ValueNum = &v
		s.Text = strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		s.Text = strconv.FormatBool(v)
		s.ValueNum = store.ParseValueNum(s.Text)
	case string:
		s.Text = v
		s.ValueNum = store.ParseValueNum(v)
	case nil:
	default:
		s.Text = fmt.Sprint(v)
	}
	return s
}

// run schedules one cron job per device at the poll interval. A device whose
// previous cycle is still running skips the tick.
func (p *collectionPlugin) run(ctx context.Context, names, ids []string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := p.Log("scheduler")
	clog := cronLogger{log.Sugar()}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))

	interval := p.Controller.Config.PollInterval
	if interval <= 0 {
		interval = plugin.DefaultPollInterval
	}
	spec := "@every " + interval.String()

	entries := make([]cron.EntryID, 0, len(names))
	for _, name := range names {
		name := name
		id, err := c.AddFunc(spec, func() { p.cycle(ctx, name, ids) })
		if err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
		entries = append(entries, id)
	}

	log.Info("polling started", zap.Strings("devices", names), zap.Duration("interval", interval))
	c.Start()
	// First cycle right away; the wrapped job keeps the skip-if-running guard.
	for _, id := range entries {
		go c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("polling stopped")
	return nil
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
