package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			oe, err := openEngine(ctx, projectDir, true)
			if err != nil {
				return err
			}
			defer oe.close()

			st, err := oe.engine.Stats(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			fmt.Fprintf(out, "Documents:      %d\n", st.Documents)
			fmt.Fprintf(out, "Terms:          %d\n", st.Terms)
			fmt.Fprintf(out, "Avg doc length: %.1f tokens\n", st.AvgDocLength)
			fmt.Fprintf(out, "Vectors:        %d\n", st.Vectors)
			fmt.Fprintf(out, "Sources:        %v\n", st.Sources)
			fmt.Fprintf(out, "Searches:       %d (%.0f%% cached, %d empty)\n",
				st.Search.TotalSearches, st.Search.CacheHitRate*100, st.Search.ZeroResults)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
