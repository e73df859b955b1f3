package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ViperJuice/codeindex/internal/scan"
	"github.com/ViperJuice/codeindex/internal/store"
)

type indexOptions struct {
	rebuild bool
	quiet   bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "Index the project directory",
		Long: `Index source files under the project directory (or the given
paths) into the local document store and search backends. Re-running
replaces changed documents in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Drop derived indexes and re-add everything")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress per-file output")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, paths []string, opts indexOptions) error {
	start := time.Now()
	oe, err := openEngine(ctx, projectDir, false)
	if err != nil {
		return err
	}
	defer oe.close()

	if opts.rebuild {
		if err := oe.engine.Rebuild(ctx); err != nil {
			return err
		}
	}

	roots := paths
	if len(roots) == 0 {
		roots = []string{projectDir}
	}

	var indexed, skipped int
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if scan.SkipDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}

			rel, relErr := filepath.Rel(projectDir, path)
			if relErr != nil {
				rel = path
			}
			rel = filepath.ToSlash(rel)

			doc, symbols, scanErr := scanFile(path, rel)
			if scanErr != nil {
				slog.Warn("skipping file", slog.String("path", rel), slog.String("error", scanErr.Error()))
				skipped++
				return nil
			}
			if doc == nil {
				skipped++
				return nil
			}
			if err := oe.engine.Index(ctx, doc, symbols); err != nil {
				return err
			}
			indexed++
			if !opts.quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "  indexed %s (%d symbols)\n", rel, len(symbols))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files (%d skipped) in %s\n",
		indexed, skipped, time.Since(start).Round(time.Millisecond))
	return nil
}

// scanFile reads one file and turns it into a document plus extracted
// symbols. Returns a nil document for files that should not be
// indexed (unknown language, binary, oversized).
func scanFile(path, rel string) (*store.Document, []*store.Symbol, error) {
	lang := scan.LanguageOf(rel)
	if lang == "" {
		return nil, nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if info.Size() > scan.MaxFileSize {
		return nil, nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if scan.IsBinary(data) {
		return nil, nil, nil
	}

	content := string(data)
	docID := rel
	symbols := scan.ExtractSymbols(docID, rel, lang, content)

	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	doc := &store.Document{
		ID:       docID,
		Path:     rel,
		Language: lang,
		Content:  content,
		Fields: map[string]string{
			"path":    rel,
			"symbols": strings.Join(names, " "),
		},
		IndexedAt: time.Now(),
	}
	return doc, symbols, nil
}
