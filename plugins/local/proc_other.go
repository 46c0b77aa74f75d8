//go:build !unix

package local

import "os/exec"

// killGroupOnCancel keeps the default kill; WaitDelay still bounds Run.
func killGroupOnCancel(*exec.Cmd) {}
