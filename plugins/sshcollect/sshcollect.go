// Package sshcollect collects from a remote host over SSH: commands run in
// sessions, files are read through SFTP.
package sshcollect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"github.com/spf13/afero/sftpfs"
	"golang.org/x/crypto/ssh"

	"systemstat/base"
)

// Executor implements plugin.Executor over one SSH connection.
type Executor struct {
	client *ssh.Client
	sftp   *sftp.Client
	fs     afero.Fs
	stats  *remoteStats
}

// Dial connects to dev. The TCP dial and SSH handshake are bounded by ctx;
// failures wrap plugin.ErrConnection.
func Dial(ctx context.Context, dev plugin.DeviceConfig) (*Executor, error) {
	client, err := connect(ctx, dev)
	if err != nil {
		return nil, err
	}

	sc, err := bounded(ctx, func() (*sftp.Client, error) { return sftp.NewClient(client) })
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: sftp %s: %v", plugin.ErrConnection, dev.Host, err)
	}

	e := &Executor{client: client, sftp: sc, fs: sftpfs.New(sc)}
	e.stats = &remoteStats{run: e.RunCommand}
	return e, nil
}

// RunCommand runs cmd in a new session. A non-zero exit is reported in the
// result, not as an error.
func (e *Executor) RunCommand(ctx context.Context, cmd string) (plugin.CommandResult, error) {
	return run(ctx, e.client, cmd)
}

// StatPath stats path over SFTP.
func (e *Executor) StatPath(ctx context.Context, path string) (plugin.FileInfo, error) {
	fi, err := bounded(ctx, func() (os.FileInfo, error) { return e.fs.Stat(path) })
	if err != nil {
		return plugin.FileInfo{}, pathError(path, err)
	}
	return fileInfo(fi), nil
}

// ListDirectory lists dir over SFTP.
func (e *Executor) ListDirectory(ctx context.Context, dir string) ([]plugin.FileInfo, error) {
	infos, err := bounded(ctx, func() ([]os.FileInfo, error) { return afero.ReadDir(e.fs, dir) })
	if err != nil {
		return nil, pathError(dir, err)
	}
	out := make([]plugin.FileInfo, 0, len(infos))
	for _, fi := range infos {
		out = append(out, fileInfo(fi))
	}
	return out, nil
}

// CheckReachable reports whether the connection still answers.
func (e *Executor) CheckReachable(ctx context.Context) (bool, error) {
	if err := keepalive(ctx, e.client); err != nil {
		return false, fmt.Errorf("%w: %v", plugin.ErrConnection, err)
	}
	return true, nil
}

// Stats returns host statistics read from /proc and standard tools.
func (e *Executor) Stats() plugin.HostStats {
	return e.stats
}

// Close closes the SFTP sub-client and the connection.
func (e *Executor) Close() error {
	return errors.Join(e.sftp.Close(), e.client.Close())
}

func fileInfo(fi fs.FileInfo) plugin.FileInfo {
	return plugin.FileInfo{Name: fi.Name(), Size: fi.Size(), ModTime: fi.ModTime(), IsDir: fi.IsDir()}
}

func pathError(path string, err error) error {
	var status *sftp.StatusError
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", plugin.ErrNotFound, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", plugin.ErrPermissionDenied, path)
	case errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxNoSuchFile:
		return fmt.Errorf("%w: %s", plugin.ErrNotFound, path)
	case errors.As(err, &status) && status.FxCode() == sftp.ErrSSHFxPermissionDenied:
		return fmt.Errorf("%w: %s", plugin.ErrPermissionDenied, path)
	default:
		return err
	}
}
