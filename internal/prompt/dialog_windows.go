//go:build windows

package prompt

import (
	"fmt"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// Popup button and icon flags and results.
const (
	mbYesNo        = 0x4
	mbIconQuestion = 0x20
	idYes          = 6
	idNo           = 7
)

func confirmDialog(title, question string) (bool, error) {
	if err := ole.CoInitialize(0); err != nil {
		return false, fmt.Errorf("failed to initialize COM: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return false, fmt.Errorf("failed to create WScript.Shell object: %w", err)
	}
	defer unknown.Release()

	shell, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return false, fmt.Errorf("failed to get IDispatch interface: %w", err)
	}
	defer shell.Release()

	result, err := oleutil.CallMethod(shell, "Popup", question, 0, title, mbYesNo|mbIconQuestion)
	if err != nil {
		return false, fmt.Errorf("failed to show dialog: %w", err)
	}
	defer result.Clear()

	switch result.Val {
	case idYes:
		return true, nil
	case idNo:
		return false, nil
	default:
		return false, fmt.Errorf("unexpected dialog result %d", result.Val)
	}
}
