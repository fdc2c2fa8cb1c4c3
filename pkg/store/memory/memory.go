// Package memory provides in-process store backends. They are the default
// when no database is configured and back most tests.
package memory

import (
	"context"

	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// Register adds the memory backends to the registry under the key "memory".
func Register(r *store.Registry) {
	r.RegisterGraph("memory", func(ctx context.Context) (store.GraphStore, error) {
		return NewGraphStore(), nil
	})
	r.RegisterVector("memory", func(ctx context.Context, namespace string, embedder store.Embedder) (store.VectorStore, error) {
		return NewVectorStore(embedder), nil
	})
	r.RegisterChunk("memory", func(ctx context.Context) (store.ChunkStore, error) {
		return NewChunkStore(), nil
	})
}
