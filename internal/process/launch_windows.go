//go:build windows

package process

import (
	"fmt"
	"strings"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const swShowNormal = 1

// startDetached hands the launch to the shell so the launcher does not
// inherit the updater's console.
func startDetached(path, dir string, args []string) error {
	if err := ole.CoInitialize(0); err != nil {
		return fmt.Errorf("failed to initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("Shell.Application")
	if err != nil {
		return fmt.Errorf("failed to create Shell object: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("failed to get IDispatch interface: %w", err)
	}
	defer shell.Release()

	if _, err := oleutil.CallMethod(shell, "ShellExecute", path, strings.Join(args, " "), dir, "open", swShowNormal); err != nil {
		return fmt.Errorf("failed to start %s: %w", path, err)
	}
	return nil
}
