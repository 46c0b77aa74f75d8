package systemstat

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"systemstat/base"
)

func pathModTime(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	path, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	fi, err := b.exec.StatPath(ctx, path)
	if err != nil {
		return nil, err
	}
	return unixSeconds(fi.ModTime), nil
}

func isMounted(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	path, err := requireParam(req)
	if err != nil {
		return nil, err
	}
	ok, err := b.exec.Stats().IsMountPoint(ctx, path)
	if err != nil {
		return nil, err
	}
	return ok, nil
}

func directoryListing(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	l, err := parseListing(req.Parameter)
	if err != nil {
		return nil, err
	}
	dir := req.Path
	if dir == "" {
		dir = "."
	}
	entries, err := b.exec.ListDirectory(ctx, dir)
	if err != nil {
		return nil, err
	}
	return l.apply(entries), nil
}

// ftpListing dials the FTP server from the collecting host; the device channel
// is not involved.
func ftpListing(ctx context.Context, b *batch, req plugin.VariableRequest) (any, error) {
	fields := strings.Fields(req.Parameter)
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: want \"<host> first N|last N|all\", got %q", plugin.ErrInvalidParameter, req.Parameter)
	}
	l, err := parseListing(strings.Join(fields[1:], " "))
	if err != nil {
		return nil, err
	}
	dir := req.Path
	if dir == "" {
		dir = "/"
	}
	entries, err := b.d.ftp.List(ctx, ftpAddr(fields[0]), b.dev.Username, b.dev.Password, dir)
	if err != nil {
		return nil, err
	}
	return l.apply(entries), nil
}

func ftpAddr(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(strings.Trim(host, "[]"), "21")
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixMilli()) / 1000
}

type listMode int

const (
	listAll listMode = iota
	listFirst
	listLast
)

// listing is a parsed "first N", "last N" or "all" selector.
type listing struct {
	mode listMode
	n    int
}

func parseListing(s string) (listing, error) {
	fields := strings.Fields(strings.ToLower(s))
	switch {
	case len(fields) == 1 && fields[0] == "all":
		return listing{mode: listAll}, nil
	case len(fields) == 2 && (fields[0] == "first" || fields[0] == "last"):
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			break
		}
		if fields[0] == "first" {
			return listing{mode: listFirst, n: n}, nil
		}
		return listing{mode: listLast, n: n}, nil
	}
	return listing{}, fmt.Errorf("%w: want first N, last N or all, got %q", plugin.ErrInvalidParameter, s)
}

// apply orders entries oldest first (name breaks ties) and joins the
// selected names with newlines. last N yields the newest entries newest first.
func (l listing) apply(entries []plugin.FileInfo) string {
	sorted := append([]plugin.FileInfo(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ModTime.Equal(sorted[j].ModTime) {
			return sorted[i].ModTime.Before(sorted[j].ModTime)
		}
		return sorted[i].Name < sorted[j].Name
	})

	var names []string
	switch l.mode {
	case listFirst:
		for i := 0; i < len(sorted) && i < l.n; i++ {
			names = append(names, sorted[i].Name)
		}
	case listLast:
		for i := len(sorted) - 1; i >= 0 && len(names) < l.n; i-- {
			names = append(names, sorted[i].Name)
		}
	default:
		for _, e := range sorted {
			names = append(names, e.Name)
		}
	}
	return strings.Join(names, "\n")
}

// FTPLister lists a directory on an FTP server.
type FTPLister interface {
	List(ctx context.Context, addr, user, password, dir string) ([]plugin.FileInfo, error)
}

type ftpClient struct{}

func (ftpClient) List(ctx context.Context, addr, user, password, dir string) ([]plugin.FileInfo, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if dl, ok := ctx.Deadline(); ok {
		opts = append(opts, ftp.DialWithTimeout(time.Until(dl)))
	}
	c, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: ftp %s: %v", plugin.ErrConnection, addr, err)
	}
	defer c.Quit() //nolint:errcheck

	if user == "" {
		user, password = "anonymous", "anonymous"
	}
	if err := c.Login(user, password); err != nil {
		return nil, fmt.Errorf("%w: ftp login %s: %v", plugin.ErrPermissionDenied, addr, err)
	}

	raw, err := c.List(dir)
	if err != nil {
		var perr *textproto.Error
		if errors.As(err, &perr) && perr.Code == ftp.StatusFileUnavailable {
			return nil, fmt.Errorf("%w: ftp %s%s", plugin.ErrNotFound, addr, dir)
		}
		return nil, fmt.Errorf("ftp list %s%s: %w", addr, dir, err)
	}

	entries := make([]plugin.FileInfo, 0, len(raw))
	for _, e := range raw {
		if e.Name == "." || e.Name == ".." {
			continue
		}
		entries = append(entries, plugin.FileInfo{
			Name:    e.Name,
			Size:    int64(e.Size),
			ModTime: e.Time,
			IsDir:   e.Type == ftp.EntryTypeFolder,
		})
	}
	return entries, nil
}
