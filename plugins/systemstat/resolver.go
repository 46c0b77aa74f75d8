package systemstat

import (
	"context"

	"systemstat/base"
	"systemstat/plugins/local"
	"systemstat/plugins/sshcollect"
)

// Resolve builds the executor for dev: the local host, or an SSH session
// bounded by ctx. Connection failures wrap plugin.ErrConnection.
func Resolve(ctx context.Context, dev plugin.DeviceConfig) (plugin.Executor, error) {
	if dev.Mode == plugin.ModeRemote {
		e, err := sshcollect.Dial(ctx, dev)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	return local.New(), nil
}
