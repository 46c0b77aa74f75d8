package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"systemstat/store"
)

// Plugin is a named command handler registered with the Controller.
type Plugin interface {
	Name() string
	Init(c *Controller)
	OnCommand(ctx context.Context, args map[string]string) error
}

// BasePlugin gives plugins access to the controller and default behaviour.
type BasePlugin struct {
	Controller *Controller
}

// Init stores the controller reference.
func (b *BasePlugin) Init(c *Controller) {
	b.Controller = c
}

// OnCommand rejects every action; plugins override it.
func (b *BasePlugin) OnCommand(_ context.Context, args map[string]string) error {
	return fmt.Errorf("%w: action %q", ErrUnsupported, args["action"])
}

// Log returns a named child of the controller logger, or a no-op logger
// before Init.
func (b *BasePlugin) Log(name string) *zap.Logger {
	if b.Controller == nil || b.Controller.Logger == nil {
		return zap.NewNop()
	}
	return b.Controller.Logger.Named(name)
}

// Controller owns the shared runtime: configuration, logger, optional store
// and the plugin registry.
type Controller struct {
	Plugins map[string]Plugin
	Config  *Config
	Store   store.Store // nil when persistence is disabled
	Logger  *zap.Logger
	Out     io.Writer
}

// NewController returns a controller with an empty registry.
func NewController(cfg *Config, logger *zap.Logger) *Controller {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		Plugins: make(map[string]Plugin),
		Config:  cfg,
		Logger:  logger,
		Out:     os.Stdout,
	}
}

// AddPlugin registers p under its lower-cased name.
func (c *Controller) AddPlugin(p Plugin) {
	p.Init(c)
	c.Plugins[strings.ToLower(p.Name())] = p
}

// PluginNames lists registered plugin keys in order.
func (c *Controller) PluginNames() []string {
	names := make([]string, 0, len(c.Plugins))
	for k := range c.Plugins {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// OnCommand routes args to the named plugin.
func (c *Controller) OnCommand(ctx context.Context, name string, args map[string]string) error {
	p, ok := c.Plugins[strings.ToLower(name)]
	if !ok {
		return fmt.Errorf("plugin %q not registered", name)
	}
	return p.OnCommand(ctx, args)
}

// Close releases the store, if any.
func (c *Controller) Close() error {
	if c.Store == nil {
		return nil
	}
	return c.Store.Close()
}
