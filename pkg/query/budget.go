package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

// finish applies the token budgets, resolves references and assigns display
// positions. A context the budgets empty entirely is still returned, empty
// and non-nil; nil stays reserved for strategies that found nothing.
func (e *Engine) finish(ctx context.Context, c *common.Context, p Params) (*common.Context, error) {
	c.Nodes = truncate(e.tokenizer, c.Nodes, p.MaxNodeTokens, nodeText)
	c.Edges = truncate(e.tokenizer, c.Edges, p.MaxEdgeTokens, edgeText)
	c.Chunks = truncate(e.tokenizer, c.Chunks, p.MaxChunkTokens, func(ch common.ContextChunk) string {
		return ch.Content
	})
	if c.IsEmpty() {
		logger.Debug("[Query] Token budgets left an empty context",
			"node_tokens", p.MaxNodeTokens,
			"edge_tokens", p.MaxEdgeTokens,
			"chunk_tokens", p.MaxChunkTokens,
		)
	}

	if p.IncludeReferences {
		refs, err := e.references(ctx, c.Chunks)
		if err != nil {
			return nil, err
		}
		c.References = refs
	}
	if c.Nodes == nil {
		c.Nodes = []common.ContextNode{}
	}
	if c.Edges == nil {
		c.Edges = []common.ContextEdge{}
	}
	if c.Chunks == nil {
		c.Chunks = []common.ContextChunk{}
	}
	if c.References == nil {
		c.References = []common.ContextReference{}
	}
	c.Reindex()

	chunkIDs := make([]string, len(c.Chunks))
	for i, ch := range c.Chunks {
		chunkIDs[i] = ch.ID
	}
	RecordUsedChunkIDs(e.tracer, chunkIDs...)
	return c, nil
}

// truncate keeps the leading items whose combined token count stays within
// budget. A budget <= 0 keeps everything.
func truncate[T any](tok ai.Tokenizer, items []T, budget int, text func(T) string) []T {
	if budget <= 0 {
		return items
	}
	total := 0
	for i, item := range items {
		total += tok.Count(text(item))
		if total > budget {
			return items[:i]
		}
	}
	return items
}

func nodeText(n common.ContextNode) string {
	return n.Name + " " + n.Type + " " + n.Description
}

func edgeText(e common.ContextEdge) string {
	return e.SourceID + " " + e.TargetID + " " + strings.Join(e.Keywords, ", ") + " " + e.Description
}

// references resolves the documents behind chunks. A reference takes the
// best Order of its chunks; documents that cannot be found are skipped.
func (e *Engine) references(ctx context.Context, chunks []common.ContextChunk) ([]common.ContextReference, error) {
	if e.chunks == nil {
		return nil, nil
	}
	out := make([]common.ContextReference, 0)
	pos := make(map[string]int)
	missing := make(map[string]struct{})
	for _, ch := range chunks {
		if ch.DocumentID == "" {
			logger.Warn("[Query] Chunk without document", "chunk", ch.ID)
			continue
		}
		if _, ok := missing[ch.DocumentID]; ok {
			continue
		}
		if i, ok := pos[ch.DocumentID]; ok {
			out[i].Order = max(out[i].Order, ch.Order)
			continue
		}
		doc, err := e.chunks.GetDocument(ctx, ch.DocumentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				logger.Warn("[Query] Document missing for chunk", "chunk", ch.ID, "document", ch.DocumentID)
				missing[ch.DocumentID] = struct{}{}
				continue
			}
			return nil, fmt.Errorf("get document %s: %w", ch.DocumentID, err)
		}
		pos[doc.ID] = len(out)
		out = append(out, common.ContextReference{
			DocumentID: doc.ID,
			Source:     doc.Source,
			Metadata:   doc.Metadata,
			Order:      ch.Order,
		})
	}
	return out, nil
}
