package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// ErrUnknownBackend is returned when a backend key has no registered
// constructor.
var ErrUnknownBackend = errors.New("unknown store backend")

// GraphFactory opens a graph store.
type GraphFactory func(ctx context.Context) (GraphStore, error)

// VectorFactory opens the vector store for one namespace (see Namespace*).
type VectorFactory func(ctx context.Context, namespace string, embedder Embedder) (VectorStore, error)

// ChunkFactory opens a chunk store.
type ChunkFactory func(ctx context.Context) (ChunkStore, error)

// Registry maps configuration keys to backend constructors. Backends are
// resolved once at startup with Open; the pipeline only ever sees the
// interfaces.
//
// A Registry should be created using NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	graph   map[string]GraphFactory
	vector  map[string]VectorFactory
	chunk   map[string]ChunkFactory
	closers []func() error
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		graph:  make(map[string]GraphFactory),
		vector: make(map[string]VectorFactory),
		chunk:  make(map[string]ChunkFactory),
	}
}

// RegisterGraph registers a graph store constructor under key.
func (r *Registry) RegisterGraph(key string, f GraphFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graph[key] = f
}

// RegisterVector registers a vector store constructor under key.
func (r *Registry) RegisterVector(key string, f VectorFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vector[key] = f
}

// RegisterChunk registers a chunk store constructor under key.
func (r *Registry) RegisterChunk(key string, f ChunkFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunk[key] = f
}

// OnClose registers a cleanup function run by Stores.Close. Factories call it
// while opening to release shared connections.
func (r *Registry) OnClose(fn func() error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closers = append(r.closers, fn)
}

// Keys lists the registered keys per kind, sorted.
func (r *Registry) Keys() (graph, vector, chunk []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k := range r.graph {
		graph = append(graph, k)
	}
	for k := range r.vector {
		vector = append(vector, k)
	}
	for k := range r.chunk {
		chunk = append(chunk, k)
	}
	sort.Strings(graph)
	sort.Strings(vector)
	sort.Strings(chunk)
	return graph, vector, chunk
}

// Selection names the backend to use for each kind of store.
type Selection struct {
	Graph  string
	Vector string
	Chunk  string
}

// Open resolves the selected backends and opens the graph store, the three
// vector namespaces and the chunk store.
func (r *Registry) Open(ctx context.Context, sel Selection, embedder Embedder) (*Stores, error) {
	r.mu.RLock()
	graphF, okG := r.graph[sel.Graph]
	vectorF, okV := r.vector[sel.Vector]
	chunkF, okC := r.chunk[sel.Chunk]
	r.mu.RUnlock()

	if !okG {
		return nil, fmt.Errorf("%w: graph %q", ErrUnknownBackend, sel.Graph)
	}
	if !okV {
		return nil, fmt.Errorf("%w: vector %q", ErrUnknownBackend, sel.Vector)
	}
	if !okC {
		return nil, fmt.Errorf("%w: chunk %q", ErrUnknownBackend, sel.Chunk)
	}

	logger.Info("[Store] Opening backends", "graph", sel.Graph, "vector", sel.Vector, "chunk", sel.Chunk)

	stores := &Stores{}
	fail := func(err error) (*Stores, error) {
		stores.closers = r.snapshotClosers()
		_ = stores.Close()
		return nil, err
	}

	var err error
	if stores.Graph, err = graphF(ctx); err != nil {
		return fail(fmt.Errorf("open graph store %q: %w", sel.Graph, err))
	}
	if stores.Nodes, err = vectorF(ctx, NamespaceNodes, embedder); err != nil {
		return fail(fmt.Errorf("open node vector store %q: %w", sel.Vector, err))
	}
	if stores.Edges, err = vectorF(ctx, NamespaceEdges, embedder); err != nil {
		return fail(fmt.Errorf("open edge vector store %q: %w", sel.Vector, err))
	}
	if stores.Chunks, err = vectorF(ctx, NamespaceChunks, embedder); err != nil {
		return fail(fmt.Errorf("open chunk vector store %q: %w", sel.Vector, err))
	}
	if stores.Text, err = chunkF(ctx); err != nil {
		return fail(fmt.Errorf("open chunk store %q: %w", sel.Chunk, err))
	}

	stores.closers = r.snapshotClosers()
	return stores, nil
}

func (r *Registry) snapshotClosers() []func() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]func() error(nil), r.closers...)
}
