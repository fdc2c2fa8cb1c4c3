package query

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"golang.org/x/sync/errgroup"
)

// global matches text against relationship level content first and expands
// the matched edges to their endpoints and source chunks.
func (e *Engine) global(ctx context.Context, text string, p Params) (*common.Context, error) {
	matches, err := e.edges.Query(ctx, text, p.TopK)
	if err != nil {
		return nil, fmt.Errorf("query edges: %w", err)
	}
	return e.fromEdgeMatches(ctx, matches, p)
}

// keywordMatch runs one edge query per keyword and keeps the best score of
// every edge.
func (e *Engine) keywordMatch(ctx context.Context, keywords []string, p Params) (*common.Context, error) {
	best := make(map[string]store.Match)
	for _, kw := range keywords {
		matches, err := e.edges.Query(ctx, kw, p.TopK)
		if err != nil {
			return nil, fmt.Errorf("query edges for %q: %w", kw, err)
		}
		for _, m := range matches {
			if prev, ok := best[m.ID]; !ok || m.Score > prev.Score {
				best[m.ID] = m
			}
		}
	}

	merged := make([]store.Match, 0, len(best))
	for _, m := range best {
		merged = append(merged, m)
	}
	slices.SortFunc(merged, func(a, b store.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if len(merged) > p.TopK {
		merged = merged[:p.TopK]
	}
	return e.fromEdgeMatches(ctx, merged, p)
}

func (e *Engine) fromEdgeMatches(ctx context.Context, matches []store.Match, p Params) (*common.Context, error) {
	edges, err := e.resolveEdges(ctx, matches)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}

	ranked, err := e.rankEdges(ctx, edges)
	if err != nil {
		return nil, err
	}

	var endpoints []string
	for _, edge := range ranked {
		endpoints = append(endpoints, edge.SourceID, edge.TargetID)
	}
	nodes, err := e.lookupNodes(ctx, common.UnionStrings(endpoints))
	if err != nil {
		return nil, err
	}

	out := &common.Context{Nodes: nodes, Edges: ranked}
	if p.IncludeChunks {
		var ids []string
		for _, edge := range ranked {
			ids = append(ids, edge.ChunkIDs...)
		}
		ids = common.UnionStrings(ids)
		if len(ids) > p.ChunkTopK {
			ids = ids[:p.ChunkTopK]
		}
		out.Chunks, err = e.lookupChunks(ctx, ids, rankOrders(ids))
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// resolveEdges maps edge vector hits back to graph edges through the endpoint
// metadata stored with them. Hits that no longer resolve are logged and
// skipped.
func (e *Engine) resolveEdges(ctx context.Context, matches []store.Match) ([]common.Edge, error) {
	found := make([]*common.Edge, len(matches))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, m := range matches {
		g.Go(func() error {
			source, target := m.Metadata[store.MetaSourceID], m.Metadata[store.MetaTargetID]
			if source == "" || target == "" {
				logger.Warn("[Query] Edge vector without endpoint metadata", "id", m.ID)
				return nil
			}
			edges, err := e.graph.GetEdges(gCtx, source, target, m.Metadata[store.MetaType])
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					edges = nil
				} else {
					return fmt.Errorf("get edges %s-%s: %w", source, target, err)
				}
			}
			for _, edge := range edges {
				if edge.ID == m.ID {
					found[i] = &edge
					return nil
				}
			}
			if len(edges) > 0 {
				found[i] = &edges[0]
				return nil
			}
			logger.Warn("[Query] Edge missing from graph store", "id", m.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]common.Edge, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, edge := range found {
		if edge == nil {
			continue
		}
		if _, ok := seen[edge.ID]; ok {
			continue
		}
		seen[edge.ID] = struct{}{}
		out = append(out, *edge)
	}

	ids := make([]string, len(out))
	for i, edge := range out {
		ids[i] = edge.ID
	}
	RecordQueriedEdgeIDs(e.tracer, ids...)
	return out, nil
}
