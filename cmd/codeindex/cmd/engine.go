package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ViperJuice/codeindex/internal/config"
	"github.com/ViperJuice/codeindex/internal/embed"
	"github.com/ViperJuice/codeindex/internal/search"
	"github.com/ViperJuice/codeindex/internal/store"
)

const dataDirName = ".codeindex"

// openedEngine bundles an engine with the cleanup that persists the
// vector store and releases every backend.
type openedEngine struct {
	engine  *search.Engine
	cfg     *config.Config
	vectors *store.HNSWStore
	vecPath string
}

func (o *openedEngine) close() error {
	if o.vectors != nil {
		if err := o.vectors.Save(o.vecPath); err != nil {
			return err
		}
	}
	return o.engine.Close()
}

// openEngine opens (or creates) the index under dir/.codeindex and
// warms the in-memory BM25 index from the document store.
func openEngine(ctx context.Context, dir string, mustExist bool) (*openedEngine, error) {
	dataDir := filepath.Join(dir, dataDirName)
	metadataPath := filepath.Join(dataDir, "metadata.db")
	if mustExist {
		if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no index found in %s. Run 'codeindex index' first", dir)
		}
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}

	docs, err := store.NewSQLiteStore(metadataPath)
	if err != nil {
		return nil, err
	}

	fuzzy, err := store.NewBleveFuzzyIndex(filepath.Join(dataDir, "fuzzy.bleve"))
	if err != nil {
		docs.Close()
		return nil, err
	}

	embedder := embed.NewStaticEmbedder()
	vectors, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embedder.Dimensions()))
	if err != nil {
		fuzzy.Close()
		docs.Close()
		return nil, err
	}
	vecPath := filepath.Join(dataDir, "vectors.gob")
	if _, statErr := os.Stat(vecPath); statErr == nil {
		if err := vectors.Load(vecPath); err != nil {
			fuzzy.Close()
			docs.Close()
			return nil, err
		}
	}

	engine, err := search.NewEngine(&cfg.Search, docs,
		search.WithFuzzy(fuzzy),
		search.WithSemantic(embedder, vectors),
	)
	if err != nil {
		vectors.Close()
		fuzzy.Close()
		docs.Close()
		return nil, err
	}
	if err := engine.Warm(ctx); err != nil {
		engine.Close()
		return nil, err
	}

	return &openedEngine{
		engine:  engine,
		cfg:     cfg,
		vectors: vectors,
		vecPath: vecPath,
	}, nil
}
