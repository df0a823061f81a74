//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
)

// setupProcessGroup puts the child in its own process group and makes
// context cancellation kill the whole group, so a script that forks
// cannot outlive its deadline.
func setupProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
}

// reapProcessGroup kills whatever is left in the child's group after Wait.
// ESRCH (group already gone) is the normal case.
func reapProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
