package systemstat

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"systemstat/base"
)

// upsStatus reads the UPS once per batch.
func (b *batch) upsStatus(ctx context.Context) (plugin.UPSStatus, error) {
	if b.upsDone {
		return b.ups, b.upsErr
	}
	b.upsDone = true

	cfg := plugin.UPSConfig{Source: "apcaccess", Command: plugin.DefaultUPSCommand}
	if b.dev.UPS != nil {
		cfg = *b.dev.UPS
	}

	if cfg.Source == "snmp" {
		if b.d.ups == nil {
			b.upsErr = fmt.Errorf("%w: no SNMP UPS reader configured", plugin.ErrUnsupported)
			return b.ups, b.upsErr
		}
		b.ups, b.upsErr = b.d.ups.ReadUPS(ctx, cfg.SNMP, b.dev.Timeout)
		return b.ups, b.upsErr
	}

	res, err := b.exec.RunCommand(ctx, cfg.Command)
	switch {
	case err != nil:
		b.upsErr = err
	case res.ExitCode != 0:
		b.upsErr = fmt.Errorf("%w: %s: exit status %d: %s",
			plugin.ErrCommandFailed, cfg.Command, res.ExitCode, strings.TrimSpace(res.Stderr))
	default:
		b.ups, b.upsErr = ParseApcaccess(res.Stdout)
	}
	return b.ups, b.upsErr
}

// ParseApcaccess reads "KEY : VALUE" lines as printed by apcaccess status.
// Numeric fields keep only their leading number ("230.0 Volts" → 230).
func ParseApcaccess(out string) (plugin.UPSStatus, error) {
	var s plugin.UPSStatus
	seen := false
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		seen = true

		switch key {
		case "STATUS":
			s.Status = value
		case "LINEV":
			s.LineVoltage = leadingNumber(value)
		case "BATTV":
			s.BatteryVoltage = leadingNumber(value)
		case "BCHARGE":
			s.BatteryCharge = leadingNumber(value)
		case "TIMELEFT":
			s.TimeLeft = leadingNumber(value)
		case "LOADPCT":
			s.Load = leadingNumber(value)
		}
	}
	if !seen {
		return s, errors.New("apcaccess: no status lines in output")
	}
	return s, nil
}

func leadingNumber(v string) *float64 {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return nil
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &f
}

func upsOnline(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
	s, err := b.upsStatus(ctx)
	if err != nil {
		return nil, err
	}
	if s.Status == "" {
		return nil, fmt.Errorf("%w: UPS did not report STATUS", plugin.ErrNotFound)
	}
	return s.Online(), nil
}

func upsLineVoltage(s plugin.UPSStatus) *float64    { return s.LineVoltage }
func upsBatteryVoltage(s plugin.UPSStatus) *float64 { return s.BatteryVoltage }
func upsBatteryCharge(s plugin.UPSStatus) *float64  { return s.BatteryCharge }
func upsTimeLeft(s plugin.UPSStatus) *float64       { return s.TimeLeft }
func upsLoad(s plugin.UPSStatus) *float64           { return s.Load }

func upsField(key string, f func(plugin.UPSStatus) *float64) strategy {
	return func(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
		s, err := b.upsStatus(ctx)
		if err != nil {
			return nil, err
		}
		v := f(s)
		if v == nil {
			return nil, fmt.Errorf("%w: UPS did not report %s", plugin.ErrNotFound, key)
		}
		return *v, nil
	}
}
