// Package local runs collection on the machine the collector itself runs on.
package local

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"

	"github.com/spf13/afero"

	"systemstat/base"
)

// Executor implements plugin.Executor for the local host.
type Executor struct {
	fs    afero.Fs
	shell string
	stats plugin.HostStats
}

// Option configures an Executor.
type Option func(*Executor)

// WithFs replaces the OS filesystem used for stat and listing calls.
func WithFs(fs afero.Fs) Option {
	return func(e *Executor) { e.fs = fs }
}

// WithShell sets the shell commands run through; default "sh".
func WithShell(shell string) Option {
	return func(e *Executor) { e.shell = shell }
}

// New returns a local executor backed by gopsutil and the OS filesystem.
func New(opts ...Option) *Executor {
	e := &Executor{fs: afero.NewOsFs(), shell: "sh", stats: hostStats{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// waitDelay bounds how long Run waits for output pipes after cancellation.
const waitDelay = 500 * time.Millisecond

// RunCommand runs cmd through the shell. A non-zero exit is reported in the
// result, not as an error. On cancellation the whole process group is killed,
// so children the shell started cannot hold the pipes open.
func (e *Executor) RunCommand(ctx context.Context, cmd string) (plugin.CommandResult, error) {
	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, e.shell, "-c", cmd)
	c.Stdout = &stdout
	c.Stderr = &stderr
	killGroupOnCancel(c)
	c.WaitDelay = waitDelay

	err := c.Run()
	if ctx.Err() != nil {
		return plugin.CommandResult{}, fmt.Errorf("run %q: %w", cmd, ctx.Err())
	}
	res := plugin.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("run %q: %w", cmd, err)
	}
	return res, nil
}

// StatPath returns metadata for path.
func (e *Executor) StatPath(_ context.Context, path string) (plugin.FileInfo, error) {
	fi, err := e.fs.Stat(path)
	if err != nil {
		return plugin.FileInfo{}, pathError(path, err)
	}
	return fileInfo(fi), nil
}

// ListDirectory returns the entries of dir.
func (e *Executor) ListDirectory(_ context.Context, dir string) ([]plugin.FileInfo, error) {
	infos, err := afero.ReadDir(e.fs, dir)
	if err != nil {
		return nil, pathError(dir, err)
	}
	out := make([]plugin.FileInfo, 0, len(infos))
	for _, fi := range infos {
		out = append(out, fileInfo(fi))
	}
	return out, nil
}

// CheckReachable always succeeds for the local host.
func (e *Executor) CheckReachable(context.Context) (bool, error) {
	return true, nil
}

// Stats returns gopsutil-backed host statistics.
func (e *Executor) Stats() plugin.HostStats {
	return e.stats
}

// Close is a no-op.
func (e *Executor) Close() error {
	return nil
}

func fileInfo(fi fs.FileInfo) plugin.FileInfo {
	return plugin.FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}
}

// pathError classifies filesystem errors against the base sentinels.
func pathError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", plugin.ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", plugin.ErrPermissionDenied, path)
	default:
		return err
	}
}
