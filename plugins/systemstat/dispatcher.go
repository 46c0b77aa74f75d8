package systemstat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"systemstat/base"
)

// ResolveFunc builds the executor used for one batch.
type ResolveFunc func(ctx context.Context, dev plugin.DeviceConfig) (plugin.Executor, error)

// UPSReader reads a UPS over the network instead of through the executor.
type UPSReader interface {
	ReadUPS(ctx context.Context, target plugin.SNMPTarget, timeout time.Duration) (plugin.UPSStatus, error)
}

// VariableSource looks variable requests up by id.
type VariableSource interface {
	LookupVariable(ctx context.Context, id string) (plugin.VariableRequest, bool, error)
}

// Dispatcher collects catalog metrics for one device at a time. It holds no
// per-device state and may be shared.
type Dispatcher struct {
	log     *zap.Logger
	resolve ResolveFunc
	ups     UPSReader
	ftp     FTPLister
	now     func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResolver replaces the executor factory.
func WithResolver(r ResolveFunc) Option {
	return func(d *Dispatcher) { d.resolve = r }
}

// WithUPSReader sets the reader used for devices whose UPS source is snmp.
func WithUPSReader(r UPSReader) Option {
	return func(d *Dispatcher) { d.ups = r }
}

// WithFTPLister replaces the FTP client used by the ftp listing metric.
func WithFTPLister(l FTPLister) Option {
	return func(d *Dispatcher) { d.ftp = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher returns a dispatcher using the default resolver and FTP client.
func NewDispatcher(log *zap.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		log:     log.Named("systemstat"),
		resolve: Resolve,
		ftp:     ftpClient{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// batch is the state shared by the requests of one Collect call.
type batch struct {
	d       *Dispatcher
	dev     plugin.DeviceConfig
	exec    plugin.Executor // nil when the device could not be reached
	connErr error

	upsDone bool
	ups     plugin.UPSStatus
	upsErr  error
}

// Collect samples every request on dev. Unknown metric codes are logged and
// left out of the result. The only batch-level error is an invalid device
// configuration; everything else is reported per variable.
func (d *Dispatcher) Collect(ctx context.Context, dev plugin.DeviceConfig, reqs []plugin.VariableRequest) (map[string]plugin.SampleResult, error) {
	dev = normalized(dev)
	if err := dev.Validate(); err != nil {
		return nil, err
	}

	log := d.log.With(zap.String("device", dev.Name))
	out := make(map[string]plugin.SampleResult, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	b := &batch{d: d, dev: dev}
	rctx, cancel := context.WithTimeout(ctx, dev.Timeout)
	exec, err := d.resolve(rctx, dev)
	cancel()
	if err != nil {
		log.Warn("device unreachable", zap.Error(err))
		b.connErr = err
	} else {
		b.exec = exec
		defer func() {
			if err := exec.Close(); err != nil {
				log.Debug("close executor", zap.Error(err))
			}
		}()
	}

	for _, req := range reqs {
		desc, ok := Lookup(req.Metric)
		if !ok {
			log.Warn("unknown metric code", zap.String("variable", req.ID), zap.Int("metric", int(req.Metric)))
			continue
		}
		out[req.ID] = d.collect(ctx, b, desc, req)
	}
	return out, nil
}

// CollectOne samples a single request. An unknown metric code is returned as
// an ErrUnsupported error.
func (d *Dispatcher) CollectOne(ctx context.Context, dev plugin.DeviceConfig, req plugin.VariableRequest) (plugin.SampleResult, error) {
	if _, ok := Lookup(req.Metric); !ok {
		return plugin.SampleResult{}, fmt.Errorf("%w: metric code %d", plugin.ErrUnsupported, req.Metric)
	}
	res, err := d.Collect(ctx, dev, []plugin.VariableRequest{req})
	if err != nil {
		return plugin.SampleResult{}, err
	}
	return res[req.ID], nil
}

// CollectIDs looks every id up in src and collects the known ones. Unknown
// ids and lookup failures are logged and skipped.
func (d *Dispatcher) CollectIDs(ctx context.Context, dev plugin.DeviceConfig, src VariableSource, ids []string) (map[string]plugin.SampleResult, error) {
	reqs := make([]plugin.VariableRequest, 0, len(ids))
	for _, id := range ids {
		req, ok, err := src.LookupVariable(ctx, id)
		if err != nil {
			d.log.Warn("variable lookup failed", zap.String("variable", id), zap.Error(err))
			continue
		}
		if !ok {
			d.log.Warn("unknown variable", zap.String("variable", id))
			continue
		}
		reqs = append(reqs, req)
	}
	return d.Collect(ctx, dev, reqs)
}

func (d *Dispatcher) collect(ctx context.Context, b *batch, desc Descriptor, req plugin.VariableRequest) plugin.SampleResult {
	res := plugin.SampleResult{VariableID: req.ID}
	if b.exec == nil && desc.Remote {
		res.Timestamp = d.timestamp()
		res.Err = fmt.Errorf("%w: %s: %v", plugin.ErrUnreachable, b.dev.Name, b.connErr)
		return res
	}

	rctx, cancel := context.WithTimeout(ctx, b.dev.Timeout)
	defer cancel()
	res.Value, res.Err = desc.collect(rctx, b, req)
	res.Timestamp = d.timestamp()
	if res.Err != nil {
		d.log.Debug("collect failed",
			zap.String("device", b.dev.Name),
			zap.String("variable", req.ID),
			zap.String("metric", desc.Label),
			zap.Error(res.Err))
	}
	return res
}

func (d *Dispatcher) timestamp() time.Time {
	return time.UnixMilli(d.now().UnixMilli()).UTC()
}

// normalized returns a defaulted copy of dev that shares no memory with it.
func normalized(dev plugin.DeviceConfig) plugin.DeviceConfig {
	if dev.UPS != nil {
		ups := *dev.UPS
		dev.UPS = &ups
	}
	dev.Normalize()
	return dev
}
