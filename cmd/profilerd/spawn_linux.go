//go:build linux

package main

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"

	"github.com/nativeprof/profiler/internal/wire"
)

// spawnTraced starts cmd.Command under PTRACE_TRACEME, stopping it at
// the first instruction so the sampler session can attach before any
// code runs (spec.md §4.5's CREATE_PROCESS contract).
func spawnTraced(cmd wire.CreateProcessCommand) (int, error) {
	var args []string
	if cmd.Args != "" {
		args = strings.Fields(cmd.Args)
	}

	c := exec.Command(cmd.Command, args...)
	if cmd.Folder != "" {
		c.Dir = cmd.Folder
	}
	c.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("spawning %q: %w", cmd.Command, err)
	}
	return c.Process.Pid, nil
}
