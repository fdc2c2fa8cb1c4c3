// Package redis implements store.ChunkStore on Redis. Chunks and documents
// are stored as JSON strings under prefixed keys.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "graphrag"

// Options configures the Redis connection.
type Options struct {
	URL            string
	Prefix         string
	ConnectTimeout time.Duration
}

// ChunkStore is a store.ChunkStore backed by Redis.
type ChunkStore struct {
	client *goredis.Client
	prefix string
}

// Open parses the URL, connects and pings.
func Open(ctx context.Context, opts Options) (*ChunkStore, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("redis: url is empty")
	}
	parsed, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	if opts.ConnectTimeout > 0 {
		parsed.DialTimeout = opts.ConnectTimeout
	}

	client := goredis.NewClient(parsed)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return NewChunkStore(client, opts.Prefix), nil
}

// NewChunkStore wraps an existing client.
func NewChunkStore(client *goredis.Client, prefix string) *ChunkStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &ChunkStore{client: client, prefix: prefix}
}

// Close closes the client.
func (s *ChunkStore) Close() error {
	return s.client.Close()
}

// Register adds the Redis chunk store to the registry under "redis".
func Register(r *store.Registry, opts Options) {
	r.RegisterChunk("redis", func(ctx context.Context) (store.ChunkStore, error) {
		s, err := Open(ctx, opts)
		if err != nil {
			return nil, err
		}
		r.OnClose(s.Close)
		return s, nil
	})
}

func (s *ChunkStore) chunkKey(id string) string { return s.prefix + ":chunk:" + id }
func (s *ChunkStore) docKey(id string) string   { return s.prefix + ":doc:" + id }

func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks ...common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	logger.Debug("[Store][Redis] Writing chunks", "chunks", len(chunks))

	return store.ChunkRange(len(chunks), 500, func(start, end int) error {
		pipe := s.client.Pipeline()
		for _, c := range chunks[start:end] {
			data, err := json.Marshal(c)
			if err != nil {
				return fmt.Errorf("marshal chunk %s: %w", c.ID, err)
			}
			pipe.Set(ctx, s.chunkKey(c.ID), data, 0)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis: write chunks: %w", err)
		}
		return nil
	})
}

func (s *ChunkStore) GetChunk(ctx context.Context, id string) (common.Chunk, error) {
	var c common.Chunk
	if err := s.get(ctx, s.chunkKey(id), &c); err != nil {
		return common.Chunk{}, fmt.Errorf("chunk %s: %w", id, err)
	}
	return c, nil
}

func (s *ChunkStore) UpsertDocument(ctx context.Context, doc common.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ID, err)
	}
	if err := s.client.Set(ctx, s.docKey(doc.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: write document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *ChunkStore) GetDocument(ctx context.Context, id string) (common.Document, error) {
	var d common.Document
	if err := s.get(ctx, s.docKey(id), &d); err != nil {
		return common.Document{}, fmt.Errorf("document %s: %w", id, err)
	}
	return d, nil
}

func (s *ChunkStore) get(ctx context.Context, key string, out any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return store.ErrNotFound
		}
		return fmt.Errorf("redis: get: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
