package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/CollapseLauncher/ApplyUpdate/internal/mirror"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ApplyUpdate %s\n", Version)
			fmt.Fprintf(out, "Commit: %s\n", Commit)
			fmt.Fprintf(out, "Built: %s\n", BuildDate)
		},
	}
}

// mirrorList is the YAML shape printed by the mirrors command.
type mirrorList struct {
	Preferred string            `yaml:"preferred"`
	Mirrors   []mirror.Endpoint `yaml:"mirrors"`
}

func newMirrorsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mirrors",
		Short: "Print the mirror list in failover order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			reg := cfg.Registry()
			return writeYAML(cmd, mirrorList{
				Preferred: reg.Preferred().Name,
				Mirrors:   reg.Candidates(),
			})
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			return writeYAML(cmd, cfg)
		},
	}
}

func writeYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
