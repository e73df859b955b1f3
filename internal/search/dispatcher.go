package search

import (
	"context"
	"strings"

	cierrors "github.com/ViperJuice/codeindex/internal/errors"
	"github.com/ViperJuice/codeindex/internal/store"
)

// Handler names the resolution path a query actually took.
type Handler string

const (
	HandlerSymbolExact Handler = "symbol_exact"
	HandlerFulltext    Handler = "fulltext"
	HandlerHybrid      Handler = "hybrid"
	HandlerSingle      Handler = "single_source"
)

// Resolution is the dispatcher's answer: which handler ran and what
// it produced. Exactly one of Symbols or Response is populated.
type Resolution struct {
	Handler Handler
	Query   string

	// Symbols is set for symbol_exact resolutions.
	Symbols []*store.Symbol

	// Response is set for every search-backed resolution.
	Response *Response
}

// Dispatcher routes queries to a resolution path based on mode. In
// auto mode a bare identifier that matches a stored symbol exactly
// short-circuits to symbol lookup; everything else runs hybrid.
type Dispatcher struct {
	engine *Engine
}

func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{engine: engine}
}

// symbolCandidate reports whether the query looks like a plain
// identifier worth trying as an exact symbol name: a single token,
// no operators, no quotes, no wildcards.
func symbolCandidate(q string) bool {
	if strings.ContainsAny(q, " \t\"*()") {
		return false
	}
	return q != "" && q != "AND" && q != "OR" && q != "NOT"
}

// Dispatch resolves a query under the given mode.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, q string, opts Options) (*Resolution, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, cierrors.New(cierrors.ErrCodeQueryEmpty, "empty query", nil)
	}

	switch mode {
	case ModeAuto, "":
		if symbolCandidate(q) {
			syms, err := d.engine.Lookup(ctx, q)
			if err != nil {
				return nil, err
			}
			if len(syms) > 0 {
				return &Resolution{Handler: HandlerSymbolExact, Query: q, Symbols: syms}, nil
			}
		}
		resp, err := d.engine.Search(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		return &Resolution{Handler: HandlerHybrid, Query: q, Response: resp}, nil

	case ModeSymbol:
		syms, err := d.engine.Lookup(ctx, q)
		if err != nil {
			return nil, err
		}
		return &Resolution{Handler: HandlerSymbolExact, Query: q, Symbols: syms}, nil

	case ModeFulltext:
		resp, err := d.engine.searchSources(ctx, q, opts, []string{SourceBM25})
		if err != nil {
			return nil, err
		}
		return &Resolution{Handler: HandlerFulltext, Query: q, Response: resp}, nil

	case ModeHybrid:
		resp, err := d.engine.Search(ctx, q, opts)
		if err != nil {
			return nil, err
		}
		return &Resolution{Handler: HandlerHybrid, Query: q, Response: resp}, nil

	case ModeBM25, ModeSemantic, ModeFuzzy:
		resp, err := d.engine.searchSources(ctx, q, opts, []string{string(mode)})
		if err != nil {
			return nil, err
		}
		return &Resolution{Handler: HandlerSingle, Query: q, Response: resp}, nil

	default:
		return nil, cierrors.New(cierrors.ErrCodeConfigInvalid, "unknown search mode: "+string(mode), nil)
	}
}
