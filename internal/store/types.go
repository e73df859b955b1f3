// Package store provides the persistence layer for the code index:
// document and symbol metadata in SQLite, fuzzy text search via Bleve,
// and vector storage via HNSW.
package store

import (
	"context"
	"fmt"
	"time"
)

// Document is one indexable unit produced by a language parser:
// typically a file or a file chunk keyed by a stable path+symbol id.
type Document struct {
	ID        string            // caller-assigned, stable across re-indexing
	Path      string            // relative file path
	Language  string            // go, python, typescript, ...
	Content   string            // full text fed to the indexes
	Fields    map[string]string // extra indexed fields (symbols, doc comments)
	IndexedAt time.Time
}

// SymbolKind is the kind of a code symbol.
type SymbolKind string

const (
	SymbolKindFunction  SymbolKind = "function"
	SymbolKindClass     SymbolKind = "class"
	SymbolKindMethod    SymbolKind = "method"
	SymbolKindType      SymbolKind = "type"
	SymbolKindInterface SymbolKind = "interface"
	SymbolKindVariable  SymbolKind = "variable"
	SymbolKindConstant  SymbolKind = "constant"
)

// Symbol is a named code symbol extracted by a parser, pointing back at
// the document that defines it. Exact-name lookup over symbols is the
// dispatcher's O(1) short-circuit path.
type Symbol struct {
	Name  string
	Kind  SymbolKind
	DocID string
	Path  string
	Line  int
}

// DocumentStore persists documents and symbols. It is the source of
// truth the inverted index and search backends are rebuilt from.
type DocumentStore interface {
	// SaveDocument upserts a document and replaces its symbols.
	SaveDocument(ctx context.Context, doc *Document, symbols []*Symbol) error

	// GetDocument fetches a document by id. Returns nil if absent.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// GetDocuments batch-fetches documents by id, preserving only
	// those that exist.
	GetDocuments(ctx context.Context, ids []string) ([]*Document, error)

	// DeleteDocument removes a document and its symbols.
	DeleteDocument(ctx context.Context, id string) error

	// IterateDocuments calls fn for every stored document.
	// Used by rebuild. Iteration stops on the first error.
	IterateDocuments(ctx context.Context, fn func(*Document) error) error

	// LookupSymbol returns symbols whose name matches exactly.
	LookupSymbol(ctx context.Context, name string) ([]*Symbol, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// Close releases the store and its directory lock.
	Close() error
}

// FuzzyResult is one hit from the fuzzy text backend.
type FuzzyResult struct {
	DocID string
	Score float64
}

// VectorResult is one hit from the vector backend.
type VectorResult struct {
	ID       string
	Distance float32
	Score    float32 // similarity in [0,1], higher is closer
}

// VectorStoreConfig configures the HNSW vector store.
type VectorStoreConfig struct {
	Dimensions int    // embedding dimensions
	Metric     string // "cos" or "l2" (default: cos)
	M          int    // HNSW connectivity (default: 16)
	EfSearch   int    // HNSW search expansion (default: 20)
}

// DefaultVectorStoreConfig returns defaults for the given dimensions.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// ErrDimensionMismatch is returned when a vector's dimensions don't
// match the store configuration.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
