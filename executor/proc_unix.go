//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// isolate starts the handler in its own process group so that cancellation also
// reaches any children it spawned.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
