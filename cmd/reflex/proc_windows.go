//go:build windows

package main

import "os/exec"

func configureServiceProc(cmd *exec.Cmd) {
	// Windows doesn't use Setsid.
}
