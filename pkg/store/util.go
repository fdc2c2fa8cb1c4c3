package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/graphrag/pkg/common"

	"golang.org/x/sync/errgroup"
)

// ChunkRange calls fn for consecutive [start, end) windows of at most
// chunkSize elements.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// GenerateEmbeddings embeds all inputs, using the batch endpoint of the
// embedder when it has one and fanning out otherwise. Results keep input
// order.
func GenerateEmbeddings(
	ctx context.Context,
	embedder Embedder,
	inputs [][]byte,
) ([][]float32, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := embedder.(embeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, inputs)
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(8)
	for i := range inputs {
		idx := i
		in := inputs[i]
		eg.Go(func() error {
			emb, err := embedder.GenerateEmbedding(ectx, in)
			if err != nil {
				return err
			}
			out[idx] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// EdgeDocument is the vector projection of an edge. The content combines
// keywords, endpoints and description so that relationship level keyword
// queries hit it.
func EdgeDocument(id, sourceID, targetID, typ, content string) VectorDocument {
	return VectorDocument{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			MetaSourceID: sourceID,
			MetaTargetID: targetID,
			MetaType:     typ,
		},
	}
}

type nodeProjection struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// NodeDocument is the vector projection of a node: its JSON encoded name,
// type and description, stored under the node id.
func NodeDocument(n common.Node) VectorDocument {
	content, err := json.Marshal(nodeProjection{Name: n.Name, Type: n.Type, Description: n.Description})
	if err != nil {
		content = []byte(n.Name + " " + n.Type + " " + n.Description)
	}
	return VectorDocument{
		ID:       n.ID,
		Content:  string(content),
		Metadata: map[string]string{MetaType: n.Type},
	}
}

// ChunkDocument is the vector projection of a chunk.
func ChunkDocument(c common.Chunk) VectorDocument {
	return VectorDocument{
		ID:       c.ID,
		Content:  c.Content,
		Metadata: map[string]string{MetaDocumentID: c.DocumentID},
	}
}
