package plugin

import (
	"context"
	"errors"
)

var (
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrUnreachable      = errors.New("unreachable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrConnection       = errors.New("connection error")
	ErrCommandFailed    = errors.New("command failed")
	ErrInvalidConfig    = errors.New("invalid device config")
	ErrUnsupported      = errors.New("unsupported")
	ErrZombieProcess    = errors.New("zombie process")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidParameter, "InvalidParameter"},
	{ErrUnreachable, "Unreachable"},
	{ErrPermissionDenied, "PermissionDenied"},
	{ErrNotFound, "NotFound"},
	{ErrConnection, "ConnectionError"},
	{ErrCommandFailed, "CommandFailed"},
	{ErrInvalidConfig, "InvalidConfig"},
	{ErrUnsupported, "Unsupported"},
	{ErrZombieProcess, "ZombieProcess"},
	{context.DeadlineExceeded, "Timeout"},
	{context.Canceled, "Canceled"},
}

// ErrorKind maps an error to a stable name for JSON output and storage.
// Errors that wrap none of the package sentinels are reported as "Error".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "Error"
}
