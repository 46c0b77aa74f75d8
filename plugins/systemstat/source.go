package systemstat

import (
	"context"

	"systemstat/base"
	"systemstat/store"
)

// ConfigSource serves variables declared in device configuration.
type ConfigSource map[string]plugin.VariableRequest

// NewConfigSource indexes the variables of devs by id.
func NewConfigSource(devs ...plugin.DeviceConfig) ConfigSource {
	s := make(ConfigSource)
	for _, d := range devs {
		for _, v := range d.Variables {
			s[v.ID] = v
		}
	}
	return s
}

func (s ConfigSource) LookupVariable(_ context.Context, id string) (plugin.VariableRequest, bool, error) {
	v, ok := s[id]
	return v, ok, nil
}

// StoreSource serves variables from the store's variables table. With Device
// set, variables stored for another device are reported as unknown.
type StoreSource struct {
	Store  store.Store
	Device string
}

func (s StoreSource) LookupVariable(ctx context.Context, id string) (plugin.VariableRequest, bool, error) {
	v, ok, err := s.Store.LookupVariable(ctx, id)
	if err != nil || !ok {
		return plugin.VariableRequest{}, ok, err
	}
	if s.Device != "" && v.Device != s.Device {
		return plugin.VariableRequest{}, false, nil
	}
	return plugin.VariableRequest{
		ID:        v.ID,
		Metric:    plugin.MetricCode(v.Metric),
		Parameter: v.Parameter,
		Path:      v.Path,
	}, true, nil
}
