// Package graph turns text into knowledge graph extractions and exposes the
// operations callers use: Extract, ExtractJSON, Ingest and Augment.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/query"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ErrNotConfigured is returned by operations whose collaborators were not
// passed to NewGraphClient.
var ErrNotConfigured = errors.New("graph client not configured for this operation")

// Consolidator merges an extraction into the persistent graph.
type Consolidator interface {
	Consolidate(ctx context.Context, x *common.Extraction) (*common.Graph, error)
}

// Augmenter builds retrieval contexts.
type Augmenter interface {
	Augment(ctx context.Context, input string, p query.Params) (*common.Context, error)
}

// Stats are the sizes of the persistent stores.
type Stats struct {
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
	Chunks int `json:"chunks"`
}

// GraphClient is the main client for interacting with the graph RAG system.
// It chunks text, runs extraction with bounded AI request parallelism,
// consolidates results into the stores and answers retrieval queries.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	extractor    *Extractor
	chunker      *Chunker
	stores       *store.Stores
	consolidator Consolidator
	engine       Augmenter

	parallelAiRequests int
}

// NewGraphClientParams defines the configuration parameters for creating
// a new GraphClient.
//
// AIClient is required. Stores, Consolidator and Engine are only needed by
// Ingest, Augment and Stats. ParallelAiRequests controls how many chunks
// are extracted concurrently. ChunkMaxTokens bounds the chunk size.
type NewGraphClientParams struct {
	AIClient     ai.GraphAIClient
	Tokenizer    ai.Tokenizer
	Stores       *store.Stores
	Consolidator Consolidator
	Engine       Augmenter

	EntityTypes        []string
	Delimiters         Delimiters
	MaxGleaning        int
	ChunkMaxTokens     int
	ParallelAiRequests int
	MaxRetries         int
}

// NewGraphClient creates and returns a new GraphClient configured with
// the provided parameters.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		AIClient:           aiClient,
//		Tokenizer:          ai.TokenizerOrFallback(ai.DefaultEncoding),
//		Stores:             stores,
//		Consolidator:       consolidate.NewService(...),
//		Engine:             query.NewEngine(...),
//		ChunkMaxTokens:     1200,
//		ParallelAiRequests: 25,
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, fmt.Errorf("graph client: missing AI client")
	}
	parallel := params.ParallelAiRequests
	if parallel <= 0 {
		parallel = 4
	}

	g := &GraphClient{
		extractor: NewExtractor(NewExtractorParams{
			AIClient:    params.AIClient,
			EntityTypes: params.EntityTypes,
			Delimiters:  params.Delimiters,
			MaxGleaning: params.MaxGleaning,
			MaxRetries:  params.MaxRetries,
		}),
		chunker:            NewChunker(params.Tokenizer, params.ChunkMaxTokens),
		stores:             params.Stores,
		consolidator:       params.Consolidator,
		engine:             params.Engine,
		parallelAiRequests: parallel,
	}
	return g, nil
}

// Extract chunks text and extracts entities and relationships from every
// chunk. Edges whose endpoints were not extracted as entities are dropped.
// It returns nil when nothing was extracted.
func (g *GraphClient) Extract(ctx context.Context, text string, entityTypes []string) (*common.Extraction, error) {
	chunks := g.chunker.Split(common.DocumentID(text), text)
	return g.extractChunks(ctx, chunks, entityTypes)
}

func (g *GraphClient) extractChunks(ctx context.Context, chunks []common.Chunk, entityTypes []string) (*common.Extraction, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]*common.Extraction, len(chunks))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			x, err := g.extractor.ExtractChunk(gCtx, chunk, entityTypes)
			if err != nil {
				return err
			}
			results[i] = x
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := common.NewExtraction()
	for _, x := range results {
		out.Merge(x)
	}
	if dropped := out.Prune(); dropped > 0 {
		logger.Debug("[Extract] Pruned edges", "count", dropped)
	}
	if out.IsEmpty() {
		return nil, nil
	}
	logger.Debug("[Extract] Extracted", "chunks", len(chunks), "nodes", out.NodeCount(), "edges", out.EdgeCount())
	return out, nil
}

// ExtractJSON runs the structured JSON extraction on every chunk of text and
// concatenates the results. It returns nil when nothing was extracted.
func (g *GraphClient) ExtractJSON(ctx context.Context, text string, entityTypes []string) (*JSONExtraction, error) {
	chunks := g.chunker.Split(common.DocumentID(text), text)
	if len(chunks) == 0 {
		return nil, nil
	}

	results := make([]*JSONExtraction, len(chunks))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, chunk := range chunks {
		eg.Go(func() error {
			res, err := g.extractor.ExtractChunkJSON(gCtx, chunk, entityTypes)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &JSONExtraction{
		Entities:      []JSONEntity{},
		Relationships: []JSONRelationship{},
		Keywords:      []string{},
	}
	for _, res := range results {
		out.merge(res)
	}
	if out.IsEmpty() {
		return nil, nil
	}
	return out, nil
}

// Ingest stores text as a document, chunks and indexes it, extracts its
// entities and relationships and consolidates them into the graph. It
// returns nil when the text yields no extraction.
func (g *GraphClient) Ingest(
	ctx context.Context,
	source string,
	text string,
	metadata map[string]string,
	entityTypes []string,
) (*common.Graph, error) {
	if g.stores == nil || g.consolidator == nil {
		return nil, fmt.Errorf("ingest: %w", ErrNotConfigured)
	}

	doc := common.NewDocument(source, text, metadata)
	chunks := g.chunker.Split(doc.ID, text)
	if len(chunks) == 0 {
		logger.Debug("[Ingest] Empty document", "source", source)
		return nil, nil
	}

	if g.stores.Text != nil {
		if err := g.stores.Text.UpsertDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("store document %s: %w", doc.ID, err)
		}
		if err := g.stores.Text.UpsertChunks(ctx, chunks...); err != nil {
			return nil, fmt.Errorf("store chunks of %s: %w", doc.ID, err)
		}
	}
	if g.stores.Chunks != nil {
		err := store.ChunkRange(len(chunks), 64, func(start, end int) error {
			docs := make([]store.VectorDocument, 0, end-start)
			for _, c := range chunks[start:end] {
				docs = append(docs, store.ChunkDocument(c))
			}
			return g.stores.Chunks.Upsert(ctx, docs...)
		})
		if err != nil {
			return nil, fmt.Errorf("index chunks of %s: %w", doc.ID, err)
		}
	}

	x, err := g.extractChunks(ctx, chunks, entityTypes)
	if err != nil {
		return nil, err
	}
	if x == nil {
		logger.Debug("[Ingest] Nothing extracted", "source", source, "document", doc.ID)
		return nil, nil
	}

	graph, err := g.consolidator.Consolidate(ctx, x)
	if err != nil {
		return nil, fmt.Errorf("consolidate %s: %w", doc.ID, err)
	}
	logger.Info("[Ingest] Document ingested", "source", source, "document", doc.ID, "chunks", len(chunks), "nodes", len(graph.Nodes), "edges", len(graph.Edges))
	return graph, nil
}

// Augment builds the retrieval context for input.
func (g *GraphClient) Augment(ctx context.Context, input string, p query.Params) (*common.Context, error) {
	if g.engine == nil {
		return nil, fmt.Errorf("augment: %w", ErrNotConfigured)
	}
	return g.engine.Augment(ctx, input, p)
}

// Stats reports the number of nodes, edges and indexed chunks.
func (g *GraphClient) Stats(ctx context.Context) (Stats, error) {
	if g.stores == nil || g.stores.Graph == nil {
		return Stats{}, fmt.Errorf("stats: %w", ErrNotConfigured)
	}
	var s Stats
	var err error
	if s.Nodes, err = g.stores.Graph.NodeCount(ctx); err != nil {
		return Stats{}, fmt.Errorf("count nodes: %w", err)
	}
	if s.Edges, err = g.stores.Graph.EdgeCount(ctx); err != nil {
		return Stats{}, fmt.Errorf("count edges: %w", err)
	}
	if g.stores.Chunks != nil {
		if s.Chunks, err = g.stores.Chunks.Count(ctx); err != nil {
			return Stats{}, fmt.Errorf("count chunks: %w", err)
		}
	}
	return s, nil
}
