// Package backend assembles the AI client, stores, consolidation service,
// retrieval engine and graph client from a config.Config. The server and the
// worker share it.
package backend

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/internal/config"
	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	oai "github.com/OFFIS-RIT/graphrag/pkg/ai/ollama"
	gai "github.com/OFFIS-RIT/graphrag/pkg/ai/openai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/consolidate"
	"github.com/OFFIS-RIT/graphrag/pkg/graph"
	"github.com/OFFIS-RIT/graphrag/pkg/leaselock"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/query"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
	"github.com/OFFIS-RIT/graphrag/pkg/store/memory"
	"github.com/OFFIS-RIT/graphrag/pkg/store/neo4j"
	pgstore "github.com/OFFIS-RIT/graphrag/pkg/store/pgx"
	"github.com/OFFIS-RIT/graphrag/pkg/store/redis"
)

// Backend holds the wired collaborators of one process.
type Backend struct {
	AI     ai.GraphAIClient
	Stores *store.Stores
	Client *graph.GraphClient
}

// NewAIClient builds the adapter selected by cfg.AI.Adapter.
func NewAIClient(cfg *config.Config, tokenizer ai.Tokenizer) (ai.GraphAIClient, error) {
	switch cfg.AI.Adapter {
	case "ollama":
		client, err := oai.NewGraphOllamaClient(oai.NewGraphOllamaClientParams{
			EmbeddingModel:  cfg.AI.EmbeddingModel,
			SummaryModel:    cfg.AI.SummaryModel,
			ExtractionModel: cfg.AI.ExtractionModel,
			EmbeddingDim:    cfg.AI.EmbeddingDim,

			BaseURL: cfg.AI.ChatURL,
			ApiKey:  cfg.AI.ChatKey,

			MaxConcurrentRequests: int64(cfg.AI.ParallelRequests),
			Timeout:               cfg.AI.Timeout,
			Tokenizer:             tokenizer,
		})
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
		return client, nil
	default:
		return gai.NewGraphOpenAIClient(gai.NewGraphOpenAIClientParams{
			EmbeddingModel:  cfg.AI.EmbeddingModel,
			SummaryModel:    cfg.AI.SummaryModel,
			ExtractionModel: cfg.AI.ExtractionModel,
			EmbeddingDim:    cfg.AI.EmbeddingDim,

			EmbeddingURL: cfg.AI.EmbeddingURL,
			EmbeddingKey: cfg.AI.EmbeddingKey,
			ChatURL:      cfg.AI.ChatURL,
			ChatKey:      cfg.AI.ChatKey,

			MaxConcurrentRequests: int64(cfg.AI.ParallelRequests),
			Timeout:               cfg.AI.Timeout,
		}), nil
	}
}

// NewTokenizer returns the configured tokenizer. WordEncoder and unloadable
// encodings yield ai.WordTokenizer.
func NewTokenizer(cfg *config.Config) ai.Tokenizer {
	if cfg.Graph.TokenEncoder == config.WordEncoder {
		return ai.WordTokenizer{}
	}
	t, err := ai.NewTokenizer(cfg.Graph.TokenEncoder)
	if err != nil {
		logger.Warn("[Backend] Falling back to word tokenizer", "encoding", cfg.Graph.TokenEncoder, "err", err)
		return ai.WordTokenizer{}
	}
	return t
}

// NewRegistry registers every store backend. Connections are only made for
// the backends Open selects.
func NewRegistry(cfg *config.Config, pg *pgstore.Opener) *store.Registry {
	r := store.NewRegistry()
	memory.Register(r)
	pgstore.Register(r, pg)
	neo4j.Register(r, neo4j.Config{
		URI:      cfg.Store.Neo4jURI,
		User:     cfg.Store.Neo4jUser,
		Password: cfg.Store.Neo4jPassword,
		Database: cfg.Store.Neo4jDatabase,
	})
	redis.Register(r, redis.Options{
		URL:    cfg.Store.RedisURL,
		Prefix: cfg.Store.RedisPrefix,
	})
	return r
}

// New opens the stores and wires the graph client.
func New(ctx context.Context, cfg *config.Config) (*Backend, error) {
	tokenizer := NewTokenizer(cfg)

	aiClient, err := NewAIClient(cfg, tokenizer)
	if err != nil {
		return nil, err
	}

	pg := pgstore.NewOpener(cfg.Store.DatabaseURL)
	registry := NewRegistry(cfg, pg)
	stores, err := registry.Open(ctx, store.Selection{
		Graph:  cfg.Store.Graph,
		Vector: cfg.Store.Vector,
		Chunk:  cfg.Store.Chunk,
	}, aiClient)
	if err != nil {
		return nil, err
	}

	locker, err := newLocker(ctx, cfg, pg)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	summarizer := ai.NewLLMSummarizer(ai.NewLLMSummarizerParams{
		Client:    aiClient,
		Tokenizer: tokenizer,
		MaxTokens: cfg.Graph.SummaryMaxTokens,
		Separator: common.FieldSeparator,
	})

	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
		AIClient:  aiClient,
		Tokenizer: tokenizer,
		Stores:    stores,
		Consolidator: consolidate.NewService(consolidate.NewServiceParams{
			Graph:          stores.Graph,
			Nodes:          stores.Nodes,
			Edges:          stores.Edges,
			Summarizer:     summarizer,
			Locker:         locker,
			SummaryTimeout: cfg.Graph.SummaryTimeout,
		}),
		Engine: query.NewEngine(query.NewEngineParams{
			Graph:        stores.Graph,
			Nodes:        stores.Nodes,
			Edges:        stores.Edges,
			ChunkVectors: stores.Chunks,
			Chunks:       stores.Text,
			Tokenizer:    tokenizer,
			Keywords:     query.NewLLMKeywordExtractor(aiClient),
		}),
		EntityTypes:        cfg.Graph.EntityTypes,
		MaxGleaning:        cfg.Graph.MaxGleaning,
		ChunkMaxTokens:     cfg.Graph.ChunkMaxTokens,
		ParallelAiRequests: cfg.AI.ParallelRequests,
		MaxRetries:         cfg.Graph.MaxRetries,
	})
	if err != nil {
		_ = stores.Close()
		return nil, err
	}

	logger.Info("[Backend] Ready",
		"ai", cfg.AI.Adapter,
		"graph", cfg.Store.Graph,
		"vector", cfg.Store.Vector,
		"chunk", cfg.Store.Chunk,
		"lock", cfg.Graph.ConsolidateLock,
	)
	return &Backend{AI: aiClient, Stores: stores, Client: client}, nil
}

// newLocker returns nil for "none", which leaves concurrent consolidations of
// the same identity unserialized.
func newLocker(ctx context.Context, cfg *config.Config, pg *pgstore.Opener) (consolidate.Locker, error) {
	switch cfg.Graph.ConsolidateLock {
	case "none":
		logger.Warn("[Backend] Consolidation runs without identity locks")
		return nil, nil
	case "lease":
		pool, err := pg.Pool(ctx)
		if err != nil {
			return nil, fmt.Errorf("open lease lock pool: %w", err)
		}
		return consolidate.NewLeaseLocker(leaselock.New(pool), cfg.Graph.LockTTL), nil
	default:
		return consolidate.NewLocalLocker(), nil
	}
}

// Close releases the store connections.
func (b *Backend) Close() error {
	if b == nil || b.Stores == nil {
		return nil
	}
	return b.Stores.Close()
}
