package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// ChunkStore keeps chunks and documents in maps.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]common.Chunk
	docs   map[string]common.Document
}

// NewChunkStore returns an empty chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[string]common.Chunk),
		docs:   make(map[string]common.Document),
	}
}

func (c *ChunkStore) UpsertChunks(ctx context.Context, chunks ...common.Chunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range chunks {
		c.chunks[ch.ID] = ch
	}
	return nil
}

func (c *ChunkStore) GetChunk(ctx context.Context, id string) (common.Chunk, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.chunks[id]
	if !ok {
		return common.Chunk{}, fmt.Errorf("chunk %s: %w", id, store.ErrNotFound)
	}
	return ch, nil
}

func (c *ChunkStore) UpsertDocument(ctx context.Context, doc common.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[doc.ID] = doc
	return nil
}

func (c *ChunkStore) GetDocument(ctx context.Context, id string) (common.Document, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.docs[id]
	if !ok {
		return common.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}
