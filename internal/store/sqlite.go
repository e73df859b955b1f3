package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	cierrors "github.com/ViperJuice/codeindex/internal/errors"
)

// SQLiteStore implements DocumentStore on a single SQLite database.
// WAL mode with a single writer connection; an advisory file lock on
// the data directory keeps two processes from indexing concurrently.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	lock   *flock.Flock
	closed bool
}

// Verify interface implementation at compile time.
var _ DocumentStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the document store at path.
// An empty path opens an in-memory store for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	var dsn string
	var dirLock *flock.Flock

	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
		}

		dirLock = flock.New(filepath.Join(dir, ".codeindex.lock"))
		locked, err := dirLock.TryLock()
		if err != nil {
			return nil, cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
		}
		if !locked {
			return nil, cierrors.New(cierrors.ErrCodeStoreLocked,
				fmt.Sprintf("index directory %s is locked by another process", dir), nil).
				WithSuggestion("stop the other indexer or remove a stale .codeindex.lock")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if dirLock != nil {
			_ = dirLock.Unlock()
		}
		return nil, cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if dirLock != nil {
				_ = dirLock.Unlock()
			}
			return nil, cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
		}
	}

	s := &SQLiteStore{db: db, lock: dirLock}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		if dirLock != nil {
			_ = dirLock.Unlock()
		}
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id         TEXT PRIMARY KEY,
		path       TEXT NOT NULL,
		language   TEXT NOT NULL DEFAULT '',
		content    TEXT NOT NULL,
		indexed_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS document_fields (
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		name   TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (doc_id, name)
	);

	CREATE TABLE IF NOT EXISTS symbols (
		name   TEXT NOT NULL,
		kind   TEXT NOT NULL,
		doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		path   TEXT NOT NULL,
		line   INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
	CREATE INDEX IF NOT EXISTS idx_symbols_doc ON symbols(doc_id);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreOpen, err)
	}
	return nil
}

// SaveDocument upserts a document and replaces its fields and symbols
// in a single transaction.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc *Document, symbols []*Symbol) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}
	defer func() { _ = tx.Rollback() }()

	indexedAt := doc.IndexedAt
	if indexedAt.IsZero() {
		indexedAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, path, language, content, indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			language = excluded.language,
			content = excluded.content,
			indexed_at = excluded.indexed_at`,
		doc.ID, doc.Path, doc.Language, doc.Content, indexedAt.Unix()); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_fields WHERE doc_id = ?`, doc.ID); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}
	for name, value := range doc.Fields {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_fields (doc_id, name, value) VALUES (?, ?, ?)`,
			doc.ID, name, value); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE doc_id = ?`, doc.ID); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}
	for _, sym := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO symbols (name, kind, doc_id, path, line) VALUES (?, ?, ?, ?, ?)`,
			sym.Name, string(sym.Kind), doc.ID, sym.Path, sym.Line); err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// GetDocument fetches a single document, nil if absent.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*Document, error) {
	docs, err := s.GetDocuments(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

// GetDocuments batch-fetches documents, skipping unknown ids.
func (s *SQLiteStore) GetDocuments(ctx context.Context, ids []string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	placeholders := ""
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, language, content, indexed_at FROM documents WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		var doc Document
		var indexedAt int64
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Language, &doc.Content, &indexedAt); err != nil {
			return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
		}
		doc.IndexedAt = time.Unix(indexedAt, 0)
		byID[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}

	if err := s.loadFields(ctx, byID); err != nil {
		return nil, err
	}

	// Preserve request order.
	docs := make([]*Document, 0, len(byID))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (s *SQLiteStore) loadFields(ctx context.Context, byID map[string]*Document) error {
	for id, doc := range byID {
		rows, err := s.db.QueryContext(ctx,
			`SELECT name, value FROM document_fields WHERE doc_id = ?`, id)
		if err != nil {
			return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
		}
		fields := make(map[string]string)
		for rows.Next() {
			var name, value string
			if err := rows.Scan(&name, &value); err != nil {
				rows.Close()
				return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
			}
			fields[name] = value
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
		}
		rows.Close()
		if len(fields) > 0 {
			doc.Fields = fields
		}
	}
	return nil
}

// DeleteDocument removes a document; fields and symbols cascade.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id); err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreWrite, err)
	}
	return nil
}

// IterateDocuments passes every document to fn in id order, fields
// included, so callers rebuilding derived indexes see exactly what
// SaveDocument persisted. Rows are collected before the field queries
// run: the pool holds a single connection, so a nested query while the
// document cursor is open would deadlock.
func (s *SQLiteStore) IterateDocuments(ctx context.Context, fn func(*Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, language, content, indexed_at FROM documents ORDER BY id`)
	if err != nil {
		return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}

	var docs []*Document
	byID := make(map[string]*Document)
	for rows.Next() {
		var doc Document
		var indexedAt int64
		if err := rows.Scan(&doc.ID, &doc.Path, &doc.Language, &doc.Content, &indexedAt); err != nil {
			rows.Close()
			return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
		}
		doc.IndexedAt = time.Unix(indexedAt, 0)
		docs = append(docs, &doc)
		byID[doc.ID] = &doc
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}
	rows.Close()

	if err := s.loadFields(ctx, byID); err != nil {
		return err
	}

	for _, doc := range docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

// LookupSymbol returns symbols named exactly name, path then line order.
func (s *SQLiteStore) LookupSymbol(ctx context.Context, name string) ([]*Symbol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, kind, doc_id, path, line FROM symbols WHERE name = ? ORDER BY path, line`, name)
	if err != nil {
		return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}
	defer rows.Close()

	var symbols []*Symbol
	for rows.Next() {
		var sym Symbol
		var kind string
		if err := rows.Scan(&sym.Name, &kind, &sym.DocID, &sym.Path, &sym.Line); err != nil {
			return nil, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
		}
		sym.Kind = SymbolKind(kind)
		symbols = append(symbols, &sym)
	}
	return symbols, rows.Err()
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, cierrors.Wrap(cierrors.ErrCodeStoreRead, err)
	}
	return count, nil
}

// Close closes the database and releases the directory lock.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.db.Close()
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}
