//go:build !windows

package main

import (
	"os/exec"
	"syscall"
)

// configureServiceProc detaches the background service from the terminal session.
func configureServiceProc(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
