package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"golang.org/x/sync/errgroup"
)

// lookupNodes fetches nodes and their degrees concurrently. The result keeps
// the order of ids; ids missing from the graph store are logged and left out.
func (e *Engine) lookupNodes(ctx context.Context, ids []string) ([]common.ContextNode, error) {
	found := make([]*common.ContextNode, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, id := range ids {
		g.Go(func() error {
			n, err := e.graph.GetNode(gCtx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					logger.Warn("[Query] Node missing from graph store", "id", id)
					return nil
				}
				return fmt.Errorf("get node %s: %w", id, err)
			}
			degree, err := e.graph.NodeDegree(gCtx, id)
			if err != nil {
				return fmt.Errorf("node degree %s: %w", id, err)
			}
			found[i] = &common.ContextNode{Node: n, Degree: degree, Order: degree}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]common.ContextNode, 0, len(ids))
	for _, n := range found {
		if n != nil {
			out = append(out, *n)
		}
	}
	return out, nil
}

// lookupDegrees returns the degree of every id.
func (e *Engine) lookupDegrees(ctx context.Context, ids []string) (map[string]int, error) {
	degrees := make([]int, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, id := range ids {
		g.Go(func() error {
			d, err := e.graph.NodeDegree(gCtx, id)
			if err != nil {
				return fmt.Errorf("node degree %s: %w", id, err)
			}
			degrees[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = degrees[i]
	}
	return out, nil
}

// lookupChunks loads chunk texts in the given order. scores supplies the
// Order of each chunk. Missing chunks are logged and skipped.
func (e *Engine) lookupChunks(ctx context.Context, ids []string, scores map[string]int) ([]common.ContextChunk, error) {
	if e.chunks == nil {
		return nil, nil
	}
	found := make([]*common.ContextChunk, len(ids))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallel)
	for i, id := range ids {
		g.Go(func() error {
			c, err := e.chunks.GetChunk(gCtx, id)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					logger.Warn("[Query] Chunk missing from chunk store", "id", id)
					return nil
				}
				return fmt.Errorf("get chunk %s: %w", id, err)
			}
			found[i] = &common.ContextChunk{
				ID:         c.ID,
				DocumentID: c.DocumentID,
				Content:    c.Content,
				Order:      scores[id],
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]common.ContextChunk, 0, len(ids))
	for _, c := range found {
		if c != nil {
			out = append(out, *c)
		}
	}
	RecordConsideredChunkIDs(e.tracer, ids...)
	return out, nil
}

// rankEdges annotates edges with the summed degree of their endpoints and
// sorts them by degree, then weight, both descending.
func (e *Engine) rankEdges(ctx context.Context, edges []common.Edge) ([]common.ContextEdge, error) {
	endpoints := make([]string, 0, len(edges)*2)
	for _, edge := range edges {
		endpoints = append(endpoints, edge.SourceID, edge.TargetID)
	}
	degrees, err := e.lookupDegrees(ctx, common.UnionStrings(endpoints))
	if err != nil {
		return nil, err
	}

	out := make([]common.ContextEdge, 0, len(edges))
	for _, edge := range edges {
		d := degrees[edge.SourceID] + degrees[edge.TargetID]
		out = append(out, common.ContextEdge{Edge: edge, Degree: d, Order: d})
	}
	sortEdges(out)
	return out, nil
}

// rankOrders turns a list position into a descending relevance score.
func rankOrders(ids []string) map[string]int {
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		out[id] = len(ids) - i
	}
	return out
}
