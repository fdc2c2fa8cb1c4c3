// Package store defines the persistence collaborators of the graph pipeline:
// the graph store (nodes, edges, degrees), vector stores (similarity search
// over node, edge and chunk projections) and the chunk store (source passages
// and their documents). Backends live in sub packages and are selected through
// a Registry.
package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// ErrNotFound is returned by lookups for ids the store does not hold.
var ErrNotFound = errors.New("not found")

// GraphStore persists nodes and edges and answers structural questions about
// the graph. Implementations must be safe for concurrent use.
type GraphStore interface {
	// UpsertNode inserts or replaces the node with node.ID.
	UpsertNode(ctx context.Context, node common.Node) error
	// UpsertEdge inserts or replaces the edge with edge.ID.
	UpsertEdge(ctx context.Context, edge common.Edge) error
	// GetNode returns ErrNotFound when the id is unknown.
	GetNode(ctx context.Context, id string) (common.Node, error)
	// GetEdges returns the edges between the two nodes in either direction.
	// An empty typ matches every type.
	GetEdges(ctx context.Context, sourceID, targetID, typ string) ([]common.Edge, error)
	// NodeDegree returns the number of edges attached to the node.
	NodeDegree(ctx context.Context, id string) (int, error)
	// AttachedEdges returns every edge with at least one endpoint in nodeIDs,
	// each edge once.
	AttachedEdges(ctx context.Context, nodeIDs []string) ([]common.Edge, error)
	NodeCount(ctx context.Context) (int, error)
	EdgeCount(ctx context.Context) (int, error)
}

// VectorDocument is the unit stored in a VectorStore. Content is what gets
// embedded; Metadata is returned verbatim with matches.
type VectorDocument struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Match is a single similarity search hit. Higher scores are better.
type Match struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorStore embeds documents and answers similarity queries by text.
type VectorStore interface {
	Upsert(ctx context.Context, docs ...VectorDocument) error
	// Query returns at most topK matches ordered by descending score.
	Query(ctx context.Context, text string, topK int) ([]Match, error)
	// GetByID returns ErrNotFound when the id is unknown.
	GetByID(ctx context.Context, id string) (VectorDocument, error)
	Count(ctx context.Context) (int, error)
}

// ChunkStore holds the source passages and the documents they were cut from,
// keyed by their content hash ids.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks ...common.Chunk) error
	// GetChunk returns ErrNotFound when the id is unknown.
	GetChunk(ctx context.Context, id string) (common.Chunk, error)
	UpsertDocument(ctx context.Context, doc common.Document) error
	// GetDocument returns ErrNotFound when the id is unknown.
	GetDocument(ctx context.Context, id string) (common.Document, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
}

// Metadata keys stored alongside edge vector documents so that a vector hit
// can be resolved back to the graph with GetEdges.
const (
	MetaSourceID   = "source_id"
	MetaTargetID   = "target_id"
	MetaType       = "type"
	MetaDocumentID = "document_id"
)

// Vector store namespaces.
const (
	NamespaceNodes  = "nodes"
	NamespaceEdges  = "edges"
	NamespaceChunks = "chunks"
)

// Stores bundles the collaborators resolved for one process.
type Stores struct {
	Graph  GraphStore
	Nodes  VectorStore
	Edges  VectorStore
	Chunks VectorStore
	Text   ChunkStore

	closers []func() error
}

// Close releases every backend connection opened while resolving the stores.
func (s *Stores) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
