//go:build !windows

package runner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// groupAlive reports whether any non-zombie process is in group pgid.
// Killed children reparented to a non-reaping PID 1 linger as zombies,
// so kill(-pgid, 0) alone over-reports on Linux containers.
func groupAlive(pgid int) bool {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return syscall.Kill(-pgid, 0) == nil
	}
	for _, e := range entries {
		if _, err := strconv.Atoi(e.Name()); err != nil {
			continue
		}
		state, group, ok := readStat(filepath.Join("/proc", e.Name(), "stat"))
		if ok && group == pgid && state != "Z" {
			return true
		}
	}
	return false
}

// processAlive reports whether pid exists and is not a zombie.
func processAlive(pid int) bool {
	state, _, ok := readStat(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if !ok {
		if _, err := os.Stat("/proc"); err == nil {
			return false
		}
		return syscall.Kill(pid, 0) == nil
	}
	return state != "Z"
}

// readStat returns the state and process group from /proc/<pid>/stat.
func readStat(path string) (string, int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, false
	}
	s := string(data)
	i := strings.LastIndexByte(s, ')')
	if i < 0 {
		return "", 0, false
	}
	// after comm: state ppid pgrp ...
	fields := strings.Fields(s[i+1:])
	if len(fields) < 3 {
		return "", 0, false
	}
	pgrp, err := strconv.Atoi(fields[2])
	if err != nil {
		return "", 0, false
	}
	return fields[0], pgrp, true
}
