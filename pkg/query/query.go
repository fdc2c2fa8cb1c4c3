// Package query assembles retrieval contexts from the knowledge graph. An
// Engine dispatches a query to one of five strategies (naive, local, global,
// hybrid, keywords) and returns a ranked, token bounded common.Context.
//
// Strategies only read from the stores. Missing graph, vector or chunk data is
// logged and skipped; only invalid input is an error.
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// Mode selects the retrieval strategy.
type Mode string

const (
	ModeNaive    Mode = "naive"
	ModeLocal    Mode = "local"
	ModeGlobal   Mode = "global"
	ModeHybrid   Mode = "hybrid"
	ModeKeywords Mode = "keywords"
)

var (
	// ErrUnknownMode is returned for a mode outside the Mode constants.
	ErrUnknownMode = errors.New("unknown query mode")
	// ErrEmptyKeywords is returned by the keywords strategy when the input
	// holds no keyword.
	ErrEmptyKeywords = errors.New("keyword query contains no keywords")
)

// Params control a single Augment call.
//
// TopK bounds primary node and edge retrieval, ChunkTopK the number of
// chunks. The Max*Tokens budgets truncate each section; a budget <= 0 means
// unlimited. HighLevelKeywords and LowLevelKeywords override keyword
// extraction for the global and local halves.
type Params struct {
	Mode      Mode `json:"mode" validate:"omitempty,oneof=naive local global hybrid keywords"`
	TopK      int  `json:"top_k" validate:"gte=0"`
	ChunkTopK int  `json:"chunk_top_k" validate:"gte=0"`

	MaxNodeTokens  int `json:"max_node_tokens"`
	MaxEdgeTokens  int `json:"max_edge_tokens"`
	MaxChunkTokens int `json:"max_chunk_tokens"`

	IncludeChunks     bool `json:"include_chunks"`
	IncludeReferences bool `json:"include_references"`

	HighLevelKeywords []string `json:"high_level_keywords,omitempty"`
	LowLevelKeywords  []string `json:"low_level_keywords,omitempty"`
}

// DefaultParams returns hybrid retrieval with chunks and moderate budgets.
func DefaultParams() Params {
	return Params{
		Mode:           ModeHybrid,
		TopK:           20,
		ChunkTopK:      10,
		MaxNodeTokens:  4000,
		MaxEdgeTokens:  4000,
		MaxChunkTokens: 6000,
		IncludeChunks:  true,
	}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.Mode == "" {
		p.Mode = d.Mode
	}
	if p.TopK <= 0 {
		p.TopK = d.TopK
	}
	if p.ChunkTopK <= 0 {
		p.ChunkTopK = d.ChunkTopK
	}
	return p
}

// Engine runs retrieval strategies against a fixed set of stores. It holds
// no per-query state and is safe for concurrent use.
//
// An Engine should be created using NewEngine.
type Engine struct {
	graph        store.GraphStore
	nodes        store.VectorStore
	edges        store.VectorStore
	chunkVectors store.VectorStore
	chunks       store.ChunkStore

	tokenizer ai.Tokenizer
	keywords  KeywordExtractor
	tracer    Tracer
	parallel  int
}

// NewEngineParams configures an Engine. Tokenizer defaults to
// ai.WordTokenizer. Keywords and Tracer are optional. Parallel bounds the
// per-node lookups of one query and defaults to 8.
type NewEngineParams struct {
	Graph        store.GraphStore
	Nodes        store.VectorStore
	Edges        store.VectorStore
	ChunkVectors store.VectorStore
	Chunks       store.ChunkStore

	Tokenizer ai.Tokenizer
	Keywords  KeywordExtractor
	Tracer    Tracer
	Parallel  int
}

// NewEngine returns a retrieval engine.
//
// Example:
//
//	engine := query.NewEngine(query.NewEngineParams{
//		Graph:        stores.Graph,
//		Nodes:        stores.Nodes,
//		Edges:        stores.Edges,
//		ChunkVectors: stores.Chunks,
//		Chunks:       stores.Text,
//		Tokenizer:    ai.TokenizerOrFallback(ai.DefaultEncoding),
//	})
//	qctx, err := engine.Augment(ctx, "Where was Barack Obama born?", query.DefaultParams())
func NewEngine(params NewEngineParams) *Engine {
	if params.Tokenizer == nil {
		params.Tokenizer = ai.WordTokenizer{}
	}
	if params.Parallel <= 0 {
		params.Parallel = 8
	}
	return &Engine{
		graph:        params.Graph,
		nodes:        params.Nodes,
		edges:        params.Edges,
		chunkVectors: params.ChunkVectors,
		chunks:       params.Chunks,
		tokenizer:    params.Tokenizer,
		keywords:     params.Keywords,
		tracer:       params.Tracer,
		parallel:     params.Parallel,
	}
}

// Augment builds the retrieval context for input. It returns nil without an
// error when the selected strategy finds nothing.
func (e *Engine) Augment(ctx context.Context, input string, p Params) (*common.Context, error) {
	p = p.withDefaults()

	var (
		raw *common.Context
		err error
	)
	switch p.Mode {
	case ModeNaive:
		raw, err = e.naive(ctx, input, p)
	case ModeLocal:
		low, _ := e.resolveKeywords(ctx, input, p)
		raw, err = e.local(ctx, keywordQuery(low, input), p)
	case ModeGlobal:
		_, high := e.resolveKeywords(ctx, input, p)
		raw, err = e.global(ctx, keywordQuery(high, input), p)
	case ModeHybrid:
		low, high := e.resolveKeywords(ctx, input, p)
		raw, err = e.hybrid(ctx, keywordQuery(low, input), keywordQuery(high, input), p)
	case ModeKeywords:
		keywords, perr := ParseKeywords(input)
		if perr != nil {
			return nil, perr
		}
		raw, err = e.keywordMatch(ctx, keywords, p)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, p.Mode)
	}
	if err != nil {
		return nil, fmt.Errorf("%s query: %w", p.Mode, err)
	}
	if raw == nil {
		logger.Debug("[Query] No context found", "mode", p.Mode)
		return nil, nil
	}

	raw.Input = input
	return e.finish(ctx, raw, p)
}

// ParseKeywords splits a comma separated keyword list. Blank entries are
// dropped; a list without any keyword is ErrEmptyKeywords.
func ParseKeywords(input string) ([]string, error) {
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	out = common.UnionStrings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyKeywords, input)
	}
	return out, nil
}

// resolveKeywords returns the low and high level keywords for input, from the
// params when set and from the keyword extractor otherwise.
func (e *Engine) resolveKeywords(ctx context.Context, input string, p Params) (low, high []string) {
	low, high = p.LowLevelKeywords, p.HighLevelKeywords
	if (len(low) > 0 && len(high) > 0) || e.keywords == nil {
		return low, high
	}

	kw, err := e.keywords.ExtractKeywords(ctx, input)
	if err != nil {
		logger.Warn("[Query] Keyword extraction failed, using raw input", "err", err)
		return low, high
	}
	if len(low) == 0 {
		low = kw.LowLevel
	}
	if len(high) == 0 {
		high = kw.HighLevel
	}
	return low, high
}

func keywordQuery(keywords []string, fallback string) string {
	if len(keywords) == 0 {
		return fallback
	}
	return strings.Join(keywords, ", ")
}
