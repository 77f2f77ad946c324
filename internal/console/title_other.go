//go:build !windows

package console

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// SetTitle sets the terminal title with an OSC escape when stdout is a
// terminal.
func SetTitle(title string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return nil
	}
	_, err := fmt.Fprintf(os.Stdout, "\x1b]0;%s\x07", title)
	return err
}
