//go:build windows

package runner

import "os/exec"

// setupProcessGroup is a no-op on Windows where Setpgid is unavailable.
// The default CommandContext cancel kills the direct child only.
func setupProcessGroup(cmd *exec.Cmd) {}

func reapProcessGroup(cmd *exec.Cmd) {}
