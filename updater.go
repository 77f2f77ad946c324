package main

import (
	"fmt"
	"os"

	"github.com/CollapseLauncher/ApplyUpdate/internal/cmd"
)

func main() {
	// Report panics without a stack trace full of local paths
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "\nOops, something broke: %v\n", r)
			fmt.Fprintln(os.Stderr, "Let the developers know what happened.")
			os.Exit(1)
		}
	}()

	os.Exit(cmd.Execute())
}
