package pgx

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/internal/util"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
)

// GraphStore implements store.GraphStore on the graph_nodes and graph_edges
// tables.
type GraphStore struct {
	conn pgxIConn
}

// NewGraphStore creates a graph store on an existing connection or pool.
func NewGraphStore(conn pgxIConn) *GraphStore {
	return &GraphStore{conn: conn}
}

const upsertNodeSQL = `
INSERT INTO graph_nodes (id, name, type, description, chunk_ids, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (id) DO UPDATE
SET name        = EXCLUDED.name,
    type        = EXCLUDED.type,
    description = EXCLUDED.description,
    chunk_ids   = EXCLUDED.chunk_ids,
    updated_at  = now();
`

func (s *GraphStore) UpsertNode(ctx context.Context, node common.Node) error {
	_, err := s.conn.Exec(ctx, upsertNodeSQL, node.ID, node.Name, node.Type, util.SanitizePostgresText(node.Description), nonNil(node.ChunkIDs))
	if err != nil {
		return fmt.Errorf("upsert node %s: %w", node.ID, err)
	}
	return nil
}

const upsertEdgeSQL = `
INSERT INTO graph_edges (id, source_id, target_id, type, description, keywords, weight, chunk_ids, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
ON CONFLICT (id) DO UPDATE
SET source_id   = EXCLUDED.source_id,
    target_id   = EXCLUDED.target_id,
    type        = EXCLUDED.type,
    description = EXCLUDED.description,
    keywords    = EXCLUDED.keywords,
    weight      = EXCLUDED.weight,
    chunk_ids   = EXCLUDED.chunk_ids,
    updated_at  = now();
`

func (s *GraphStore) UpsertEdge(ctx context.Context, edge common.Edge) error {
	_, err := s.conn.Exec(ctx, upsertEdgeSQL,
		edge.ID, edge.SourceID, edge.TargetID, edge.Type, util.SanitizePostgresText(edge.Description),
		nonNil(edge.Keywords), edge.Weight, nonNil(edge.ChunkIDs),
	)
	if err != nil {
		return fmt.Errorf("upsert edge %s: %w", edge.ID, err)
	}
	return nil
}

func (s *GraphStore) GetNode(ctx context.Context, id string) (common.Node, error) {
	var n common.Node
	err := s.conn.QueryRow(ctx,
		`SELECT id, name, type, description, chunk_ids FROM graph_nodes WHERE id = $1`, id,
	).Scan(&n.ID, &n.Name, &n.Type, &n.Description, &n.ChunkIDs)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return common.Node{}, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
		}
		return common.Node{}, fmt.Errorf("get node %s: %w", id, err)
	}
	return n, nil
}

const edgeColumns = `id, source_id, target_id, type, description, keywords, weight, chunk_ids`

func (s *GraphStore) GetEdges(ctx context.Context, sourceID, targetID, typ string) ([]common.Edge, error) {
	rows, err := s.conn.Query(ctx, `
SELECT `+edgeColumns+`
FROM graph_edges
WHERE ((source_id = $1 AND target_id = $2) OR (source_id = $2 AND target_id = $1))
  AND ($3 = '' OR type = $3)
ORDER BY id`, sourceID, targetID, typ)
	if err != nil {
		return nil, fmt.Errorf("get edges %s-%s: %w", sourceID, targetID, err)
	}
	return collectEdges(rows)
}

func (s *GraphStore) NodeDegree(ctx context.Context, id string) (int, error) {
	var degree int
	err := s.conn.QueryRow(ctx,
		`SELECT count(*) FROM graph_edges WHERE source_id = $1 OR target_id = $1`, id,
	).Scan(&degree)
	if err != nil {
		return 0, fmt.Errorf("node degree %s: %w", id, err)
	}
	return degree, nil
}

func (s *GraphStore) AttachedEdges(ctx context.Context, nodeIDs []string) ([]common.Edge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	rows, err := s.conn.Query(ctx, `
SELECT `+edgeColumns+`
FROM graph_edges
WHERE source_id = ANY($1) OR target_id = ANY($1)
ORDER BY id`, nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("attached edges: %w", err)
	}
	return collectEdges(rows)
}

func (s *GraphStore) NodeCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM graph_nodes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("node count: %w", err)
	}
	return n, nil
}

func (s *GraphStore) EdgeCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.QueryRow(ctx, `SELECT count(*) FROM graph_edges`).Scan(&n); err != nil {
		return 0, fmt.Errorf("edge count: %w", err)
	}
	return n, nil
}

func collectEdges(rows pgxv5.Rows) ([]common.Edge, error) {
	edges, err := pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Edge, error) {
		var e common.Edge
		err := row.Scan(&e.ID, &e.SourceID, &e.TargetID, &e.Type, &e.Description, &e.Keywords, &e.Weight, &e.ChunkIDs)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan edges: %w", err)
	}
	return edges, nil
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
