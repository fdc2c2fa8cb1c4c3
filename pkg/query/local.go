package query

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// local seeds the context with the nodes most similar to text and expands
// it to their attached edges and the chunks those edges were extracted from.
func (e *Engine) local(ctx context.Context, text string, p Params) (*common.Context, error) {
	primary, err := e.primaryNodes(ctx, text, p.TopK)
	if err != nil {
		return nil, err
	}
	if len(primary) == 0 {
		return nil, nil
	}

	primaryIDs := make([]string, len(primary))
	for i, n := range primary {
		primaryIDs[i] = n.ID
	}
	attached, err := e.graph.AttachedEdges(ctx, primaryIDs)
	if err != nil {
		return nil, fmt.Errorf("attached edges: %w", err)
	}
	edges, err := e.rankEdges(ctx, attached)
	if err != nil {
		return nil, err
	}

	out := &common.Context{Nodes: primary, Edges: edges}
	if p.IncludeChunks {
		nodeChunks, err := e.endpointChunks(ctx, primary, attached)
		if err != nil {
			return nil, err
		}
		scored := scoreChunks(primary, attached, nodeChunks)
		if len(scored) > p.ChunkTopK {
			scored = scored[:p.ChunkTopK]
		}
		ids := make([]string, len(scored))
		scores := make(map[string]int, len(scored))
		for i, s := range scored {
			ids[i] = s.id
			scores[s.id] = s.score
		}
		out.Chunks, err = e.lookupChunks(ctx, ids, scores)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// primaryNodes queries the node vector store and resolves every hit against
// the graph store, in vector rank order.
func (e *Engine) primaryNodes(ctx context.Context, text string, topK int) ([]common.ContextNode, error) {
	matches, err := e.nodes.Query(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	nodes, err := e.lookupNodes(ctx, ids)
	if err != nil {
		return nil, err
	}
	RecordQueriedNodeIDs(e.tracer, ids...)
	return nodes, nil
}

// endpointChunks maps every edge endpoint to its chunk ids. Primary nodes
// are already loaded; neighbors are fetched.
func (e *Engine) endpointChunks(ctx context.Context, primary []common.ContextNode, edges []common.Edge) (map[string][]string, error) {
	out := make(map[string][]string, len(primary))
	for _, n := range primary {
		out[n.ID] = n.ChunkIDs
	}

	var missing []string
	for _, edge := range edges {
		for _, id := range []string{edge.SourceID, edge.TargetID} {
			if _, ok := out[id]; !ok {
				missing = append(missing, id)
			}
		}
	}
	neighbors, err := e.lookupNodes(ctx, common.UnionStrings(missing))
	if err != nil {
		return nil, err
	}
	for _, n := range neighbors {
		out[n.ID] = n.ChunkIDs
	}
	return out, nil
}

type scoredChunk struct {
	id    string
	score int
}

// scoreChunks ranks the chunks of the primary nodes. A chunk scores one point
// for every edge whose two endpoints both carry it. Chunks are sorted by
// score, ties keep encounter order (primary node order, then chunk order).
func scoreChunks(primary []common.ContextNode, edges []common.Edge, nodeChunks map[string][]string) []scoredChunk {
	var candidates []string
	for _, n := range primary {
		candidates = append(candidates, n.ChunkIDs...)
	}
	candidates = common.UnionStrings(candidates)

	counts := make(map[string]int, len(candidates))
	for _, edge := range edges {
		target := make(map[string]struct{}, len(nodeChunks[edge.TargetID]))
		for _, c := range nodeChunks[edge.TargetID] {
			target[c] = struct{}{}
		}
		for _, c := range common.UnionStrings(nodeChunks[edge.SourceID]) {
			if _, ok := target[c]; ok {
				counts[c]++
			}
		}
	}

	out := make([]scoredChunk, len(candidates))
	for i, id := range candidates {
		out[i] = scoredChunk{id: id, score: counts[id]}
	}
	slices.SortStableFunc(out, func(a, b scoredChunk) int {
		return cmp.Compare(b.score, a.score)
	})
	return out
}

func sortEdges(edges []common.ContextEdge) {
	slices.SortStableFunc(edges, func(a, b common.ContextEdge) int {
		if c := cmp.Compare(b.Degree, a.Degree); c != 0 {
			return c
		}
		return cmp.Compare(b.Weight, a.Weight)
	})
}
