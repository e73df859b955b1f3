// Package scan decides which files enter the index and extracts
// lightweight symbol information from source text. Extraction is
// line-based on purpose: it stays fast and dependency-free while
// catching the declarations people actually look up by name.
package scan

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/ViperJuice/codeindex/internal/store"
)

// MaxFileSize is the largest file the indexer will read.
const MaxFileSize = 1 << 20 // 1 MiB

// languageByExt maps file extensions to language names.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".sh":    "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".proto": "protobuf",
}

// skipDirs are directory names never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".codeindex":   true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
}

// LanguageOf returns the language for a path, or "" for files that
// should not be indexed.
func LanguageOf(path string) string {
	return languageByExt[strings.ToLower(filepath.Ext(path))]
}

// SkipDir reports whether a directory should be skipped entirely.
func SkipDir(name string) bool {
	if skipDirs[name] {
		return true
	}
	// Hidden directories are skipped, except the project root ".".
	return len(name) > 1 && name[0] == '.'
}

// IsBinary uses the classic null-byte sniff over the first 8000
// bytes, same heuristic as git.
func IsBinary(data []byte) bool {
	n := len(data)
	if n > 8000 {
		n = 8000
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// ExtractSymbols pulls named declarations out of source text with
// per-language line prefixes. Good enough for exact-name lookup; a
// full parser is deliberately out of scope.
func ExtractSymbols(docID, path, lang, content string) []*store.Symbol {
	var symbols []*store.Symbol
	add := func(name string, kind store.SymbolKind, line int) {
		if name == "" {
			return
		}
		symbols = append(symbols, &store.Symbol{
			Name:  name,
			Kind:  kind,
			DocID: docID,
			Path:  path,
			Line:  line,
		})
	}

	lines := strings.Split(content, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lineNo := i + 1
		switch lang {
		case "go":
			if rest, ok := strings.CutPrefix(line, "func "); ok {
				add(goFuncName(rest), store.SymbolKindFunction, lineNo)
			} else if rest, ok := strings.CutPrefix(line, "type "); ok {
				add(identPrefix(rest), store.SymbolKindType, lineNo)
			}
		case "python":
			if rest, ok := strings.CutPrefix(line, "def "); ok {
				add(identPrefix(rest), store.SymbolKindFunction, lineNo)
			} else if rest, ok := strings.CutPrefix(line, "class "); ok {
				add(identPrefix(rest), store.SymbolKindClass, lineNo)
			}
		case "javascript", "typescript":
			stripped := strings.TrimPrefix(line, "export ")
			stripped = strings.TrimPrefix(stripped, "default ")
			if rest, ok := strings.CutPrefix(stripped, "function "); ok {
				add(identPrefix(rest), store.SymbolKindFunction, lineNo)
			} else if rest, ok := strings.CutPrefix(stripped, "class "); ok {
				add(identPrefix(rest), store.SymbolKindClass, lineNo)
			} else if rest, ok := strings.CutPrefix(stripped, "interface "); ok {
				add(identPrefix(rest), store.SymbolKindType, lineNo)
			}
		case "rust":
			stripped := strings.TrimPrefix(line, "pub ")
			if rest, ok := strings.CutPrefix(stripped, "fn "); ok {
				add(identPrefix(rest), store.SymbolKindFunction, lineNo)
			} else if rest, ok := strings.CutPrefix(stripped, "struct "); ok {
				add(identPrefix(rest), store.SymbolKindType, lineNo)
			} else if rest, ok := strings.CutPrefix(stripped, "enum "); ok {
				add(identPrefix(rest), store.SymbolKindType, lineNo)
			}
		case "java", "csharp":
			if name, ok := javaClassName(line); ok {
				add(name, store.SymbolKindClass, lineNo)
			}
		}
	}
	return symbols
}

// goFuncName handles both plain functions and methods: for
// "(r *Recv) Name(" it returns "Name".
func goFuncName(rest string) string {
	if strings.HasPrefix(rest, "(") {
		if i := strings.Index(rest, ")"); i >= 0 {
			rest = strings.TrimSpace(rest[i+1:])
		}
	}
	return identPrefix(rest)
}

// javaClassName matches "... class Name" / "... interface Name" with
// arbitrary modifiers before the keyword.
func javaClassName(line string) (string, bool) {
	fields := strings.Fields(line)
	for i, f := range fields {
		if (f == "class" || f == "interface" || f == "enum") && i+1 < len(fields) {
			return identPrefix(fields[i+1]), true
		}
	}
	return "", false
}

// identPrefix returns the leading identifier of s.
func identPrefix(s string) string {
	for i, r := range s {
		if r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || i > 0 && r >= '0' && r <= '9' {
			continue
		}
		return s[:i]
	}
	return s
}
