package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild derived indexes from the document store",
		Long: `Drop the BM25, fuzzy and vector indexes and reconstruct them from
the document store. Use after corruption or an index format change;
the document store itself is untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oe, err := openEngine(ctx, projectDir, true)
			if err != nil {
				return err
			}
			defer oe.close()

			start := time.Now()
			if err := oe.engine.Rebuild(ctx); err != nil {
				return err
			}
			st, err := oe.engine.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt indexes for %d documents in %s\n",
				st.Documents, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}
