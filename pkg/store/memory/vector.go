package memory

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/OFFIS-RIT/graphrag/pkg/store"
)

type vectorEntry struct {
	doc       store.VectorDocument
	embedding []float32
	terms     map[string]struct{}
}

// VectorStore is an in-process store.VectorStore. With an embedder it ranks
// by cosine similarity; without one it falls back to term overlap, which
// keeps it usable (and deterministic) when no model is configured.
type VectorStore struct {
	mu       sync.RWMutex
	embedder store.Embedder
	entries  map[string]vectorEntry
}

// NewVectorStore returns an empty vector store. embedder may be nil.
func NewVectorStore(embedder store.Embedder) *VectorStore {
	return &VectorStore{
		embedder: embedder,
		entries:  make(map[string]vectorEntry),
	}
}

func (v *VectorStore) Upsert(ctx context.Context, docs ...store.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}

	var embeddings [][]float32
	if v.embedder != nil {
		inputs := make([][]byte, len(docs))
		for i := range docs {
			inputs[i] = []byte(docs[i].Content)
		}
		var err error
		embeddings, err = store.GenerateEmbeddings(ctx, v.embedder, inputs)
		if err != nil {
			return fmt.Errorf("embed documents: %w", err)
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("upsert vector document: empty id")
		}
		entry := vectorEntry{doc: doc, terms: terms(doc.Content)}
		if embeddings != nil {
			entry.embedding = embeddings[i]
		}
		v.entries[doc.ID] = entry
	}
	return nil
}

func (v *VectorStore) Query(ctx context.Context, text string, topK int) ([]store.Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	var queryEmb []float32
	if v.embedder != nil {
		emb, err := v.embedder.GenerateEmbedding(ctx, []byte(text))
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		queryEmb = emb
	}
	queryTerms := terms(text)

	v.mu.RLock()
	matches := make([]store.Match, 0, len(v.entries))
	for _, e := range v.entries {
		var score float64
		if queryEmb != nil && e.embedding != nil {
			score = cosine(queryEmb, e.embedding)
		} else {
			score = overlap(queryTerms, e.terms)
			if score == 0 {
				continue
			}
		}
		matches = append(matches, store.Match{
			ID:       e.doc.ID,
			Content:  e.doc.Content,
			Score:    score,
			Metadata: e.doc.Metadata,
		})
	}
	v.mu.RUnlock()

	slices.SortFunc(matches, func(a, b store.Match) int {
		if a.Score != b.Score {
			if a.Score > b.Score {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (v *VectorStore) GetByID(ctx context.Context, id string) (store.VectorDocument, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	e, ok := v.entries[id]
	if !ok {
		return store.VectorDocument{}, fmt.Errorf("vector document %s: %w", id, store.ErrNotFound)
	}
	return e.doc, nil
}

func (v *VectorStore) Count(ctx context.Context) (int, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.entries), nil
}

func terms(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		out[f] = struct{}{}
	}
	return out
}

// overlap is the share of query terms present in the document.
func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := range n {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
