package query

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// naive returns the chunks nearest to input without touching the graph.
func (e *Engine) naive(ctx context.Context, input string, p Params) (*common.Context, error) {
	if e.chunkVectors == nil {
		return nil, nil
	}
	matches, err := e.chunkVectors.Query(ctx, input, p.ChunkTopK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	orders := rankOrders(ids)

	var chunks []common.ContextChunk
	if e.chunks != nil {
		chunks, err = e.lookupChunks(ctx, ids, orders)
		if err != nil {
			return nil, err
		}
	} else {
		chunks = make([]common.ContextChunk, 0, len(matches))
		for _, m := range matches {
			chunks = append(chunks, common.ContextChunk{
				ID:         m.ID,
				DocumentID: m.Metadata[store.MetaDocumentID],
				Content:    m.Content,
				Order:      orders[m.ID],
			})
		}
	}
	if len(chunks) == 0 {
		return nil, nil
	}
	return &common.Context{Chunks: chunks}, nil
}
