package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ViperJuice/codeindex/internal/config"
)

func newConfigCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Print the effective configuration: built-in defaults overlaid with
.codeindex.yaml and CODEINDEX_* environment variables. With --init,
write the current effective configuration to .codeindex.yaml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(projectDir)
			if err != nil {
				return err
			}
			if write {
				if err := cfg.Save(projectDir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote .codeindex.yaml")
				return nil
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			cmd.OutOrStdout().Write(data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "init", false, "Write the effective config to .codeindex.yaml")
	return cmd
}
