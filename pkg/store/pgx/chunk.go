package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// ChunkStore implements store.ChunkStore on the chunks and documents tables.
type ChunkStore struct {
	conn pgxIConn
}

// NewChunkStore creates a chunk store on an existing connection or pool.
func NewChunkStore(conn pgxIConn) *ChunkStore {
	return &ChunkStore{conn: conn}
}

const upsertChunksSQL = `
INSERT INTO chunks (id, document_id, chunk_index, tokens, content)
SELECT * FROM unnest($1::text[], $2::text[], $3::int[], $4::int[], $5::text[])
ON CONFLICT (id) DO UPDATE
SET document_id = EXCLUDED.document_id,
    chunk_index = EXCLUDED.chunk_index,
    tokens      = EXCLUDED.tokens,
    content     = EXCLUDED.content;
`

// UpsertChunks writes chunks in batches of 1000, one transaction per batch.
func (s *ChunkStore) UpsertChunks(ctx context.Context, chunks ...common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	logger.Debug("[Store][Postgres] Bulk upserting chunks", "chunks", len(chunks))

	return store.ChunkRange(len(chunks), 1000, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		count := end - start
		ids := make([]string, 0, count)
		docIDs := make([]string, 0, count)
		indexes := make([]int32, 0, count)
		tokens := make([]int32, 0, count)
		contents := make([]string, 0, count)
		for _, c := range chunks[start:end] {
			ids = append(ids, c.ID)
			docIDs = append(docIDs, c.DocumentID)
			indexes = append(indexes, int32(c.Index))
			tokens = append(tokens, int32(c.Tokens))
			contents = append(contents, util.SanitizePostgresText(c.Content))
		}

		if _, err := tx.Exec(ctx, upsertChunksSQL, ids, docIDs, indexes, tokens, contents); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
		return tx.Commit(ctx)
	})
}

func (s *ChunkStore) GetChunk(ctx context.Context, id string) (common.Chunk, error) {
	var c common.Chunk
	err := s.conn.QueryRow(ctx,
		`SELECT id, document_id, chunk_index, tokens, content FROM chunks WHERE id = $1`, id,
	).Scan(&c.ID, &c.DocumentID, &c.Index, &c.Tokens, &c.Content)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return common.Chunk{}, fmt.Errorf("chunk %s: %w", id, store.ErrNotFound)
		}
		return common.Chunk{}, fmt.Errorf("get chunk %s: %w", id, err)
	}
	return c, nil
}

func (s *ChunkStore) UpsertDocument(ctx context.Context, doc common.Document) error {
	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err := s.conn.Exec(ctx, `
INSERT INTO documents (id, source, content, metadata)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
SET source = EXCLUDED.source, metadata = EXCLUDED.metadata`,
		doc.ID, doc.Source, util.SanitizePostgresText(doc.Content), metadata,
	)
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *ChunkStore) GetDocument(ctx context.Context, id string) (common.Document, error) {
	var d common.Document
	err := s.conn.QueryRow(ctx,
		`SELECT id, source, content, metadata FROM documents WHERE id = $1`, id,
	).Scan(&d.ID, &d.Source, &d.Content, &d.Metadata)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return common.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
		}
		return common.Document{}, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}
