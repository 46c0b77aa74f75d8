package systemstat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"

	"systemstat/base"
)

// runCommand returns trimmed stdout, as a number when it parses as one. A
// non-zero exit status becomes the value alongside ErrCommandFailed.
func runCommand(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	cmd, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	res, err := b.exec.RunCommand(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return float64(res.ExitCode), fmt.Errorf("%w: exit status %d: %s",
			plugin.ErrCommandFailed, res.ExitCode, strings.TrimSpace(res.Stderr))
	}
	return commandValue(res.Stdout), nil
}

func commandValue(stdout string) any {
	out := strings.TrimSpace(stdout)
	if f, err := strconv.ParseFloat(out, 64); err == nil {
		return f
	}
	return out
}

// availability is always answerable: a device that could not be reached is
// simply not available.
func availability(ctx context.Context, b *batch, _ plugin.VariableRequest) (any, error) {
	if b.exec == nil {
		return false, nil
	}
	ok, err := b.exec.CheckReachable(ctx)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

func systemdEnabledState(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	return systemdState(ctx, b, req, "is-enabled", systemdEnabled, 13)
}

func systemdActiveState(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	return systemdState(ctx, b, req, "is-active", systemdActive, 7)
}

// systemdState maps the first line systemctl prints to its code. systemctl
// exits non-zero for most states, so the exit status is ignored.
func systemdState(ctx context.Context, b *batch, req plugin.VariableRequest, verb string, table []CodeEntry, notFound int) (any, error) {
	unit, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	res, err := b.exec.RunCommand(ctx, "systemctl "+verb+" "+shellescape.Quote(unit))
	if err != nil {
		return nil, err
	}
	return float64(codeOf(table, firstLine(res.Stdout), notFound)), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
