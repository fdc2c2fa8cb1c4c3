package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// GraphStore is a map backed store.GraphStore with an adjacency index.
type GraphStore struct {
	mu    sync.RWMutex
	nodes map[string]common.Node
	edges map[string]common.Edge
	// node id -> edge ids
	adj map[string]map[string]struct{}
}

// NewGraphStore returns an empty graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{
		nodes: make(map[string]common.Node),
		edges: make(map[string]common.Edge),
		adj:   make(map[string]map[string]struct{}),
	}
}

func (g *GraphStore) UpsertNode(ctx context.Context, node common.Node) error {
	if node.ID == "" {
		return fmt.Errorf("upsert node: empty id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[node.ID] = node
	return nil
}

func (g *GraphStore) UpsertEdge(ctx context.Context, edge common.Edge) error {
	if edge.ID == "" {
		return fmt.Errorf("upsert edge: empty id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if old, ok := g.edges[edge.ID]; ok {
		g.unlink(old)
	}
	g.edges[edge.ID] = edge
	g.link(edge.SourceID, edge.ID)
	g.link(edge.TargetID, edge.ID)
	return nil
}

func (g *GraphStore) link(nodeID, edgeID string) {
	set, ok := g.adj[nodeID]
	if !ok {
		set = make(map[string]struct{})
		g.adj[nodeID] = set
	}
	set[edgeID] = struct{}{}
}

func (g *GraphStore) unlink(edge common.Edge) {
	for _, id := range []string{edge.SourceID, edge.TargetID} {
		if set, ok := g.adj[id]; ok {
			delete(set, edge.ID)
		}
	}
}

func (g *GraphStore) GetNode(ctx context.Context, id string) (common.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return common.Node{}, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
	}
	return n, nil
}

func (g *GraphStore) GetEdges(ctx context.Context, sourceID, targetID, typ string) ([]common.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]common.Edge, 0)
	for edgeID := range g.adj[sourceID] {
		e := g.edges[edgeID]
		if !e.HasEndpoints(sourceID, targetID) {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		out = append(out, e)
	}
	sortEdges(out)
	return out, nil
}

func (g *GraphStore) NodeDegree(ctx context.Context, id string) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.adj[id]), nil
}

func (g *GraphStore) AttachedEdges(ctx context.Context, nodeIDs []string) ([]common.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]common.Edge, 0)
	for _, nodeID := range nodeIDs {
		ids := make([]string, 0, len(g.adj[nodeID]))
		for edgeID := range g.adj[nodeID] {
			ids = append(ids, edgeID)
		}
		slices.Sort(ids)
		for _, edgeID := range ids {
			if _, ok := seen[edgeID]; ok {
				continue
			}
			seen[edgeID] = struct{}{}
			out = append(out, g.edges[edgeID])
		}
	}
	return out, nil
}

func (g *GraphStore) NodeCount(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes), nil
}

func (g *GraphStore) EdgeCount(ctx context.Context) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges), nil
}

func sortEdges(edges []common.Edge) {
	slices.SortFunc(edges, func(a, b common.Edge) int {
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
