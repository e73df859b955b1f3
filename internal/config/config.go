// Package config loads and validates service configuration.
// Values merge in order: built-in defaults, then a YAML config file,
// then CODEINDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	cierrors "github.com/ViperJuice/codeindex/internal/errors"
)

// ConfigFileName is the per-project config file name.
const ConfigFileName = ".codeindex.yaml"

// Config is the root configuration.
type Config struct {
	// IndexDir is where index data lives (default: ~/.codeindex).
	IndexDir string `yaml:"index_dir" json:"index_dir"`

	Search  SearchConfig  `yaml:"search" json:"search"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SearchConfig configures ranking, fusion and caching.
type SearchConfig struct {
	// Weights are the per-source fusion weights. They are normalized
	// to sum to 1 before use; negative values are rejected.
	Weights Weights `yaml:"weights" json:"weights"`

	// RRFConstant is the reciprocal rank fusion smoothing constant.
	RRFConstant int `yaml:"rrf_k" json:"rrf_k"`

	// Enabled search methods. BM25 is the local engine and is on by
	// default; disabling it leaves only the remote-style sources.
	EnableBM25     bool `yaml:"enable_bm25" json:"enable_bm25"`
	EnableSemantic bool `yaml:"enable_semantic" json:"enable_semantic"`
	EnableFuzzy    bool `yaml:"enable_fuzzy" json:"enable_fuzzy"`

	// SourceTimeout bounds each semantic/fuzzy fan-out call. The
	// local BM25 source runs unbounded: it never does network I/O.
	SourceTimeout time.Duration `yaml:"source_timeout" json:"source_timeout"`

	// BM25 tuning constants.
	K1 float64 `yaml:"bm25_k1" json:"bm25_k1"`
	B  float64 `yaml:"bm25_b" json:"bm25_b"`

	// DefaultLimit and MaxLimit bound the fused result count.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`
	MaxLimit     int `yaml:"max_limit" json:"max_limit"`

	// CandidateLimit is how many results each source is asked for
	// before fusion.
	CandidateLimit int `yaml:"candidate_limit" json:"candidate_limit"`

	// CacheSize is the LRU entry cap for the result cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`

	// Per-source cache TTLs. The effective TTL for a cached search is
	// the weight-normalized mix of these: symbol-heavy BM25 results go
	// stale faster than semantic ones, so the mix follows the weights.
	TTLBM25     time.Duration `yaml:"ttl_bm25" json:"ttl_bm25"`
	TTLSemantic time.Duration `yaml:"ttl_semantic" json:"ttl_semantic"`
	TTLFuzzy    time.Duration `yaml:"ttl_fuzzy" json:"ttl_fuzzy"`
}

// Weights are relative per-source fusion weights.
type Weights struct {
	BM25     float64 `yaml:"bm25" json:"bm25"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
	Fuzzy    float64 `yaml:"fuzzy" json:"fuzzy"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	FilePath string `yaml:"file" json:"file"`
}

// NewConfig returns the built-in defaults.
func NewConfig() *Config {
	return &Config{
		IndexDir: defaultIndexDir(),
		Search: SearchConfig{
			Weights:        Weights{BM25: 0.5, Semantic: 0.3, Fuzzy: 0.2},
			RRFConstant:    60,
			EnableBM25:     true,
			EnableSemantic: true,
			EnableFuzzy:    true,
			SourceTimeout:  2 * time.Second,
			K1:             1.2,
			B:              0.75,
			DefaultLimit:   20,
			MaxLimit:       100,
			CandidateLimit: 50,
			CacheSize:      512,
			TTLBM25:        180 * time.Second,
			TTLSemantic:    600 * time.Second,
			TTLFuzzy:       300 * time.Second,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

func defaultIndexDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".codeindex")
	}
	return filepath.Join(home, ".codeindex")
}

// Load builds the effective configuration for a project directory:
// defaults, overlaid by dir/.codeindex.yaml if present, overlaid by
// environment variables.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	path := filepath.Join(dir, ConfigFileName)
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, cierrors.New(cierrors.ErrCodeConfigInvalid,
				fmt.Sprintf("cannot parse %s: %v", path, err), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, cierrors.Wrap(cierrors.ErrCodeConfigNotFound, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays CODEINDEX_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CODEINDEX_INDEX_DIR"); v != "" {
		cfg.IndexDir = v
	}
	if v := os.Getenv("CODEINDEX_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CODEINDEX_ENABLE_SEMANTIC"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.EnableSemantic = b
		}
	}
	if v := os.Getenv("CODEINDEX_ENABLE_FUZZY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.EnableFuzzy = b
		}
	}
	if v := os.Getenv("CODEINDEX_SOURCE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.SourceTimeout = d
		}
	}
}

// Validate checks invariants that would otherwise surface as bad
// ranking at query time.
func (c *Config) Validate() error {
	s := &c.Search
	if s.Weights.BM25 < 0 || s.Weights.Semantic < 0 || s.Weights.Fuzzy < 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "search weights must be non-negative", nil)
	}
	if s.Weights.BM25+s.Weights.Semantic+s.Weights.Fuzzy == 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "at least one search weight must be positive", nil)
	}
	if s.RRFConstant <= 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "rrf_k must be positive", nil)
	}
	if s.K1 <= 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "bm25_k1 must be positive", nil)
	}
	if s.B < 0 || s.B > 1 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "bm25_b must be in [0,1]", nil)
	}
	if s.DefaultLimit <= 0 || s.MaxLimit <= 0 || s.DefaultLimit > s.MaxLimit {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "result limits must be positive and default <= max", nil)
	}
	if s.CandidateLimit <= 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "candidate_limit must be positive", nil)
	}
	if s.CacheSize <= 0 {
		return cierrors.New(cierrors.ErrCodeConfigInvalid, "cache_size must be positive", nil)
	}
	return nil
}

// Save writes the config as YAML to dir/.codeindex.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return cierrors.Wrap(cierrors.ErrCodeConfigInvalid, err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigFileName), data, 0o644)
}
