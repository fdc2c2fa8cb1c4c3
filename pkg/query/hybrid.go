package query

import (
	"context"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
)

// hybrid unions the local context for the low level keywords with the global
// context for the high level keywords. The two run one after the other.
func (e *Engine) hybrid(ctx context.Context, lowText, highText string, p Params) (*common.Context, error) {
	localCtx, err := e.local(ctx, lowText, p)
	if err != nil {
		return nil, err
	}
	globalCtx, err := e.global(ctx, highText, p)
	if err != nil {
		return nil, err
	}
	return mergeContexts(localCtx, globalCtx), nil
}

// mergeContexts unions a and b section by section. Sections arrive sorted by
// relevance, so an item present in both keeps the position of its first
// occurrence and the entry with the better rank within its own list. Ties
// keep a.
func mergeContexts(a, b *common.Context) *common.Context {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return &common.Context{
		Input: a.Input,
		Nodes: mergeByID(a.Nodes, b.Nodes,
			func(n common.ContextNode) string { return n.ID }),
		Edges: mergeByID(a.Edges, b.Edges,
			func(e common.ContextEdge) string { return e.ID }),
		Chunks: mergeByID(a.Chunks, b.Chunks,
			func(c common.ContextChunk) string { return c.ID }),
	}
}

// mergeByID compares list positions rather than Order values, which use a
// different scale per strategy.
func mergeByID[T any](a, b []T, id func(T) string) []T {
	out := make([]T, 0, len(a)+len(b))
	pos := make(map[string]int, len(a)+len(b))
	rank := make(map[string]int, len(a)+len(b))
	for _, list := range [][]T{a, b} {
		for r, item := range list {
			key := id(item)
			if i, ok := pos[key]; ok {
				if r < rank[key] {
					out[i] = item
					rank[key] = r
				}
				continue
			}
			pos[key] = len(out)
			rank[key] = r
			out = append(out, item)
		}
	}
	return out
}
