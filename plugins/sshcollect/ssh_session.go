package sshcollect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"systemstat/base"
)

// connect dials addr and completes the SSH handshake, both bounded by ctx.
func connect(ctx context.Context, dev plugin.DeviceConfig) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User: dev.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(dev.Password),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dev.Timeout,
	}

	addr := net.JoinHostPort(dev.Host, strconv.Itoa(dev.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", plugin.ErrConnection, addr, err)
	}

	// The handshake has no context of its own.
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: ssh handshake %s: %v", plugin.ErrConnection, addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

// run executes cmd in a new session. On cancellation the remote process is
// killed and the session closed.
func run(ctx context.Context, client *ssh.Client, cmd string) (plugin.CommandResult, error) {
	session, err := client.NewSession()
	if err != nil {
		return plugin.CommandResult{}, fmt.Errorf("%w: new session: %v", plugin.ErrConnection, err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd) }()

	select {
	case err := <-done:
		res := plugin.CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			return res, nil
		}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		var missing *ssh.ExitMissingError
		if errors.As(err, &missing) {
			return res, fmt.Errorf("%w: %q exited without status", plugin.ErrCommandFailed, cmd)
		}
		return res, fmt.Errorf("%w: run %q: %v", plugin.ErrConnection, cmd, err)
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		return plugin.CommandResult{}, fmt.Errorf("run %q: %w", cmd, ctx.Err())
	}
}

// keepalive round-trips a global request, proving the transport still works.
func keepalive(ctx context.Context, client *ssh.Client) error {
	done := make(chan error, 1)
	go func() {
		_, _, err := client.SendRequest("keepalive@openssh.com", true, nil)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bounded runs f and gives up waiting when ctx ends. f keeps running in the
// background; the SFTP client has no cancellation of its own.
func bounded[T any](ctx context.Context, f func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := f()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
