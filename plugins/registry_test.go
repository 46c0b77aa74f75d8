package plugins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	plugin "systemstat/base"
)

type namedPlugin struct {
	plugin.BasePlugin
	name string
}

func (p *namedPlugin) Name() string { return p.name }

func (p *namedPlugin) OnCommand(ctx context.Context, args map[string]string) error {
	return p.BasePlugin.OnCommand(ctx, args)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	saved := All
	t.Cleanup(func() { All = saved })
	All = nil

	Register(&namedPlugin{name: "Collection"})
	assert.Panics(t, func() { Register(&namedPlugin{name: "collection"}) })
	assert.Len(t, All, 1)
}

func TestControllerRouting(t *testing.T) {
	c := plugin.NewController(nil, nil)
	c.AddPlugin(&namedPlugin{name: "Echo"})
	assert.Equal(t, []string{"echo"}, c.PluginNames())

	err := c.OnCommand(context.Background(), "ECHO", map[string]string{"action": "x"})
	assert.ErrorIs(t, err, plugin.ErrUnsupported)
	assert.Error(t, c.OnCommand(context.Background(), "missing", nil))
	assert.NoError(t, c.Close())
}
