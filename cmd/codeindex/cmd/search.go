package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ViperJuice/codeindex/internal/search"
)

type searchOptions struct {
	limit    int
	mode     string
	language string
	pathGlob string
	format   string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase.

Queries support implicit AND, "exact phrases", explicit AND/OR/NOT,
prefix* wildcards, NEAR(a b, k) proximity, and (grouping).

In auto mode a bare identifier that matches a known symbol resolves
directly to its definitions; everything else runs hybrid search over
the BM25, semantic and fuzzy backends.

Examples:
  codeindex search "parse config"
  codeindex search '"connection pool"' --limit 5
  codeindex search 'handler AND NOT test' --language go
  codeindex search 'NewServer' --mode symbol`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "auto", "Resolution mode: auto, symbol, fulltext, hybrid, bm25, semantic, fuzzy")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Filter by language (e.g. go, python)")
	cmd.Flags().StringVarP(&opts.pathGlob, "path", "p", "", "Filter by path glob")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	oe, err := openEngine(ctx, projectDir, true)
	if err != nil {
		return err
	}
	defer oe.close()

	dispatcher := search.NewDispatcher(oe.engine)
	res, err := dispatcher.Dispatch(ctx, search.Mode(opts.mode), query, search.Options{
		Limit:    opts.limit,
		Language: opts.language,
		PathGlob: opts.pathGlob,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return printResolutionJSON(cmd.OutOrStdout(), res)
	}
	printResolutionText(cmd.OutOrStdout(), res)
	return nil
}

func printResolutionJSON(w io.Writer, res *search.Resolution) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func printResolutionText(w io.Writer, res *search.Resolution) {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	if res.Handler == search.HandlerSymbolExact {
		if len(res.Symbols) == 0 {
			fmt.Fprintf(w, "No symbols named %q\n", res.Query)
			return
		}
		for _, s := range res.Symbols {
			fmt.Fprintf(w, "%s %s  %s:%d\n", s.Kind, colorize(color, s.Name), s.Path, s.Line)
		}
		return
	}

	resp := res.Response
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", res.Query)
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%2d. %s  (score %.4f, via %s)\n",
			i+1, colorize(color, r.Path), r.Score, strings.Join(r.Sources, "+"))
		if r.Snippet != "" {
			fmt.Fprintf(w, "    %s\n", r.Snippet)
		}
	}
	if len(resp.Degraded) > 0 {
		fmt.Fprintf(w, "\n(degraded sources: %s)\n", strings.Join(resp.Degraded, ", "))
	}
}

func colorize(enabled bool, s string) string {
	if !enabled {
		return s
	}
	return "\033[1;36m" + s + "\033[0m"
}
