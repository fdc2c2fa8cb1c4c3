// Package neo4j implements store.GraphStore on a Neo4j database. Nodes are
// stored as :Entity, edges as directed :RELATES relationships.
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	driver "github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds the connection settings.
type Config struct {
	URI      string
	User     string
	Password string
	Database string
	Timeout  time.Duration
	MaxPool  int
}

// GraphStore is a store.GraphStore backed by Neo4j.
type GraphStore struct {
	driver   driver.DriverWithContext
	database string
}

// Open connects to Neo4j, verifies connectivity and creates the id
// constraint.
func Open(ctx context.Context, cfg Config) (*GraphStore, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j: uri is empty")
	}
	if cfg.User == "" {
		cfg.User = "neo4j"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxPool <= 0 {
		cfg.MaxPool = 50
	}

	auth := driver.BasicAuth(cfg.User, cfg.Password, "")
	d, err := driver.NewDriverWithContext(cfg.URI, auth, func(c *driver.Config) {
		c.MaxConnectionPoolSize = cfg.MaxPool
		c.SocketConnectTimeout = cfg.Timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := d.VerifyConnectivity(vctx); err != nil {
		_ = d.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &GraphStore{driver: d, database: cfg.Database}
	if err := s.write(ctx, `CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (n:Entity) REQUIRE n.id IS UNIQUE`, nil); err != nil {
		logger.Warn("[Store][Neo4j] Schema init failed (continuing)", "err", err)
	}
	return s, nil
}

// Close closes the driver.
func (s *GraphStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// Register adds the Neo4j graph store to the registry under "neo4j".
func Register(r *store.Registry, cfg Config) {
	r.RegisterGraph("neo4j", func(ctx context.Context) (store.GraphStore, error) {
		s, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		r.OnClose(func() error { return s.Close(context.Background()) })
		return s, nil
	})
}

func (s *GraphStore) session(ctx context.Context, mode driver.AccessMode) driver.SessionWithContext {
	return s.driver.NewSession(ctx, driver.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *GraphStore) write(ctx context.Context, cypher string, params map[string]any) error {
	session := s.session(ctx, driver.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx driver.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	return err
}

func (s *GraphStore) read(ctx context.Context, cypher string, params map[string]any) ([]*driver.Record, error) {
	session := s.session(ctx, driver.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx driver.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*driver.Record)
	return records, nil
}

func (s *GraphStore) UpsertNode(ctx context.Context, node common.Node) error {
	err := s.write(ctx, `
MERGE (n:Entity {id: $id})
SET n.name = $name,
    n.type = $type,
    n.description = $description,
    n.chunk_ids = $chunk_ids
`, map[string]any{
		"id":          node.ID,
		"name":        node.Name,
		"type":        node.Type,
		"description": node.Description,
		"chunk_ids":   stringsParam(node.ChunkIDs),
	})
	if err != nil {
		return fmt.Errorf("neo4j: upsert node %s: %w", node.ID, err)
	}
	return nil
}

// UpsertEdge fails with store.ErrNotFound when an endpoint node is missing.
func (s *GraphStore) UpsertEdge(ctx context.Context, edge common.Edge) error {
	records, err := s.readWrite(ctx, `
MATCH (a:Entity {id: $source_id})
MATCH (b:Entity {id: $target_id})
MERGE (a)-[r:RELATES {id: $id}]->(b)
SET r.type = $type,
    r.description = $description,
    r.keywords = $keywords,
    r.weight = $weight,
    r.chunk_ids = $chunk_ids
RETURN r.id
`, map[string]any{
		"id":          edge.ID,
		"source_id":   edge.SourceID,
		"target_id":   edge.TargetID,
		"type":        edge.Type,
		"description": edge.Description,
		"keywords":    stringsParam(edge.Keywords),
		"weight":      edge.Weight,
		"chunk_ids":   stringsParam(edge.ChunkIDs),
	})
	if err != nil {
		return fmt.Errorf("neo4j: upsert edge %s: %w", edge.ID, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("neo4j: upsert edge %s: endpoint: %w", edge.ID, store.ErrNotFound)
	}
	return nil
}

func (s *GraphStore) readWrite(ctx context.Context, cypher string, params map[string]any) ([]*driver.Record, error) {
	session := s.session(ctx, driver.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx driver.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	records, _ := out.([]*driver.Record)
	return records, nil
}

func (s *GraphStore) GetNode(ctx context.Context, id string) (common.Node, error) {
	records, err := s.read(ctx, `
MATCH (n:Entity {id: $id})
RETURN n.id, n.name, n.type, n.description, n.chunk_ids
`, map[string]any{"id": id})
	if err != nil {
		return common.Node{}, fmt.Errorf("neo4j: get node %s: %w", id, err)
	}
	if len(records) == 0 {
		return common.Node{}, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
	}
	v := records[0].Values
	return common.Node{
		ID:          asString(v[0]),
		Name:        asString(v[1]),
		Type:        asString(v[2]),
		Description: asString(v[3]),
		ChunkIDs:    asStrings(v[4]),
	}, nil
}

const edgeReturn = `
RETURN DISTINCT r.id, startNode(r).id, endNode(r).id, r.type, r.description, r.keywords, r.weight, r.chunk_ids
ORDER BY r.id
`

func (s *GraphStore) GetEdges(ctx context.Context, sourceID, targetID, typ string) ([]common.Edge, error) {
	records, err := s.read(ctx, `
MATCH (a:Entity {id: $source_id})-[r:RELATES]-(b:Entity {id: $target_id})
WHERE $type = '' OR r.type = $type
`+edgeReturn, map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"type":      typ,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: get edges %s-%s: %w", sourceID, targetID, err)
	}
	return recordsToEdges(records), nil
}

func (s *GraphStore) NodeDegree(ctx context.Context, id string) (int, error) {
	records, err := s.read(ctx, `
OPTIONAL MATCH (n:Entity {id: $id})-[r:RELATES]-()
RETURN count(r)
`, map[string]any{"id": id})
	if err != nil {
		return 0, fmt.Errorf("neo4j: node degree %s: %w", id, err)
	}
	return countOf(records), nil
}

func (s *GraphStore) AttachedEdges(ctx context.Context, nodeIDs []string) ([]common.Edge, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	records, err := s.read(ctx, `
MATCH (n:Entity)-[r:RELATES]-()
WHERE n.id IN $ids
`+edgeReturn, map[string]any{"ids": nodeIDs})
	if err != nil {
		return nil, fmt.Errorf("neo4j: attached edges: %w", err)
	}
	return recordsToEdges(records), nil
}

func (s *GraphStore) NodeCount(ctx context.Context) (int, error) {
	records, err := s.read(ctx, `MATCH (n:Entity) RETURN count(n)`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j: node count: %w", err)
	}
	return countOf(records), nil
}

func (s *GraphStore) EdgeCount(ctx context.Context) (int, error) {
	records, err := s.read(ctx, `MATCH ()-[r:RELATES]->() RETURN count(r)`, nil)
	if err != nil {
		return 0, fmt.Errorf("neo4j: edge count: %w", err)
	}
	return countOf(records), nil
}

func recordsToEdges(records []*driver.Record) []common.Edge {
	out := make([]common.Edge, 0, len(records))
	for _, rec := range records {
		v := rec.Values
		out = append(out, common.Edge{
			ID:          asString(v[0]),
			SourceID:    asString(v[1]),
			TargetID:    asString(v[2]),
			Type:        asString(v[3]),
			Description: asString(v[4]),
			Keywords:    asStrings(v[5]),
			Weight:      asFloat(v[6]),
			ChunkIDs:    asStrings(v[7]),
		})
	}
	return out
}
