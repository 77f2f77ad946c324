package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CollapseLauncher/ApplyUpdate/internal/archive"
	"github.com/CollapseLauncher/ApplyUpdate/internal/console"
	"github.com/CollapseLauncher/ApplyUpdate/internal/download"
	"github.com/CollapseLauncher/ApplyUpdate/internal/manifest"
)

func newCompressCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "compress <input> <output>",
		Short: "Brotli-compress a file with release package settings",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer := console.NewRenderer(cmd.OutOrStdout(), false)
			start := time.Now()

			err := archive.Compress(cmd.Context(), args[0], args[1], func(processed, total int64) {
				p := download.Progress{BytesProcessed: processed, BytesTotal: total}
				if elapsed := time.Since(start).Seconds(); elapsed > 0 {
					p.Throughput = float64(processed) / elapsed
				}
				renderer.Progress(p)
			})
			renderer.Done()
			if err != nil {
				return err
			}
			renderer.Log("Compressed %s to %s", args[0], args[1])
			return nil
		},
	}
}

func newPackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <dir> <output>",
		Short: "Build a release package from a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			renderer := console.NewRenderer(cmd.OutOrStdout(), false)
			n, err := archive.Pack(cmd.Context(), args[0], args[1], renderer.Entry)
			renderer.Done()
			if err != nil {
				return err
			}
			renderer.Log("Packed %d entries into %s", n, args[1])
			return nil
		},
	}
}

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <fileindex.json> <dir>",
		Short: "Check a directory against a release manifest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}

			mismatches, err := m.Verify(args[1])
			out := cmd.OutOrStdout()
			for _, mm := range mismatches {
				fmt.Fprintln(out, mm)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d files match version %s\n", len(m.Files), m.Version.Full())
			return nil
		},
	}
}
