//go:build unix

package local

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel starts the shell in its own process group and kills the
// group when the context is done.
func killGroupOnCancel(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
