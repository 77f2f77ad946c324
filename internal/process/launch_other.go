//go:build !windows

package process

import (
	"fmt"
	"os/exec"
	"syscall"
)

func startDetached(path, dir string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", path, err)
	}
	return cmd.Process.Release()
}
