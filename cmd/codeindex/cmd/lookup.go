package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <symbol>",
		Short: "Look up a symbol by exact name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oe, err := openEngine(ctx, projectDir, true)
			if err != nil {
				return err
			}
			defer oe.close()

			syms, err := oe.engine.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			if len(syms) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No symbols named %q\n", args[0])
				return nil
			}
			for _, s := range syms {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s  %s:%d\n", s.Kind, s.Name, s.Path, s.Line)
			}
			return nil
		},
	}
}
