package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// VectorStore implements store.VectorStore on the vector_documents table.
// Every namespace (nodes, edges, chunks) shares the table.
type VectorStore struct {
	conn      pgxIConn
	namespace string
	embedder  store.Embedder
}

// NewVectorStore creates a vector store for one namespace.
func NewVectorStore(conn pgxIConn, namespace string, embedder store.Embedder) *VectorStore {
	return &VectorStore{conn: conn, namespace: namespace, embedder: embedder}
}

const upsertVectorSQL = `
INSERT INTO vector_documents (namespace, id, content, metadata, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (namespace, id) DO UPDATE
SET content   = EXCLUDED.content,
    metadata  = EXCLUDED.metadata,
    embedding = EXCLUDED.embedding;
`

// Upsert embeds and writes documents in batches of 250, one transaction per
// batch.
func (s *VectorStore) Upsert(ctx context.Context, docs ...store.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}

	return store.ChunkRange(len(docs), 250, func(start, end int) error {
		batch := docs[start:end]
		inputs := make([][]byte, len(batch))
		for i := range batch {
			inputs[i] = []byte(batch[i].Content)
		}
		logger.Debug("[Store][pgvector] Generating embeddings", "namespace", s.namespace, "count", len(inputs))
		embeddings, err := store.GenerateEmbeddings(ctx, s.embedder, inputs)
		if err != nil {
			return fmt.Errorf("embed %s documents: %w", s.namespace, err)
		}

		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for i, doc := range batch {
			metadata := doc.Metadata
			if metadata == nil {
				metadata = map[string]string{}
			}
			_, err := tx.Exec(ctx, upsertVectorSQL,
				s.namespace, doc.ID, util.SanitizePostgresText(doc.Content), metadata, pgvector.NewVector(embeddings[i]),
			)
			if err != nil {
				return fmt.Errorf("upsert vector document %s: %w", doc.ID, err)
			}
		}
		return tx.Commit(ctx)
	})
}

func (s *VectorStore) Query(ctx context.Context, text string, topK int) ([]store.Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	emb, err := s.embedder.GenerateEmbedding(ctx, []byte(text))
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
SELECT id, content, metadata, 1 - (embedding <=> $2) AS score
FROM vector_documents
WHERE namespace = $1
ORDER BY embedding <=> $2
LIMIT $3`, s.namespace, pgvector.NewVector(emb), topK)
	if err != nil {
		return nil, fmt.Errorf("query %s vectors: %w", s.namespace, err)
	}

	matches, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (store.Match, error) {
		var m store.Match
		err := row.Scan(&m.ID, &m.Content, &m.Metadata, &m.Score)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s matches: %w", s.namespace, err)
	}
	return matches, nil
}

func (s *VectorStore) GetByID(ctx context.Context, id string) (store.VectorDocument, error) {
	var d store.VectorDocument
	err := s.conn.QueryRow(ctx,
		`SELECT id, content, metadata FROM vector_documents WHERE namespace = $1 AND id = $2`,
		s.namespace, id,
	).Scan(&d.ID, &d.Content, &d.Metadata)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return store.VectorDocument{}, fmt.Errorf("vector document %s: %w", id, store.ErrNotFound)
		}
		return store.VectorDocument{}, fmt.Errorf("get vector document %s: %w", id, err)
	}
	return d, nil
}

func (s *VectorStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM vector_documents WHERE namespace = $1`, s.namespace,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s vectors: %w", s.namespace, err)
	}
	return n, nil
}
