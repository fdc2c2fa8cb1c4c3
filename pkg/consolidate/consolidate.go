// Package consolidate merges extractions into the persistent graph. Names are
// resolved to node ids, descriptions of the same entity or relationship are
// summarized instead of overwritten, and the result is written to the graph
// store and the node and edge vector stores.
//
// Read-merge-write for one identity is not atomic. Two consolidations touching
// the same entity concurrently can lose an update unless a Locker is set.
package consolidate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/logger"
	"github.com/OFFIS-RIT/graphrag/pkg/store"

	"golang.org/x/sync/errgroup"
)

// ErrMissingEndpoint is returned when a resolved edge points at a node the
// graph store does not hold.
var ErrMissingEndpoint = errors.New("edge endpoint missing from graph store")

// Summarizer compacts several descriptions of one entity or relationship.
type Summarizer interface {
	Summarize(ctx context.Context, descriptions []string) (string, error)
}

// JoinSummarizer joins descriptions with common.FieldSeparator. It is the
// fallback when no LLM is configured.
type JoinSummarizer struct{}

func (JoinSummarizer) Summarize(ctx context.Context, descriptions []string) (string, error) {
	return common.JoinField(common.UnionStrings(trimAll(descriptions))), nil
}

// Service merges extractions into the stores.
//
// A Service should be created using NewService.
type Service struct {
	graph      store.GraphStore
	nodes      store.VectorStore
	edges      store.VectorStore
	summarizer Summarizer
	locker     Locker

	summaryTimeout time.Duration
	parallel       int
}

// NewServiceParams configures a Service. Nodes and Edges may be nil to skip
// vector indexing. Summarizer defaults to JoinSummarizer. Locker is optional.
// SummaryTimeout bounds each summarization call when positive. Parallel limits
// concurrent node merges and defaults to 4.
type NewServiceParams struct {
	Graph      store.GraphStore
	Nodes      store.VectorStore
	Edges      store.VectorStore
	Summarizer Summarizer
	Locker     Locker

	SummaryTimeout time.Duration
	Parallel       int
}

// NewService returns a consolidation service.
//
// Example:
//
//	svc := consolidate.NewService(consolidate.NewServiceParams{
//		Graph:      stores.Graph,
//		Nodes:      stores.Nodes,
//		Edges:      stores.Edges,
//		Summarizer: summarizer,
//		Locker:     consolidate.NewLocalLocker(),
//	})
func NewService(params NewServiceParams) *Service {
	if params.Summarizer == nil {
		params.Summarizer = JoinSummarizer{}
	}
	if params.Parallel <= 0 {
		params.Parallel = 4
	}
	return &Service{
		graph:          params.Graph,
		nodes:          params.Nodes,
		edges:          params.Edges,
		summarizer:     params.Summarizer,
		locker:         params.Locker,
		summaryTimeout: params.SummaryTimeout,
		parallel:       params.Parallel,
	}
}

// Consolidate merges x into the stores and returns the resolved graph. A nil
// or empty extraction yields a nil graph. Edges whose endpoint names are not
// part of x are dropped; an edge whose resolved endpoint is missing from the
// graph store fails with ErrMissingEndpoint.
func (s *Service) Consolidate(ctx context.Context, x *common.Extraction) (*common.Graph, error) {
	if x.IsEmpty() {
		return nil, nil
	}

	names := x.NodeNames()
	nodes := make([]common.Node, len(names))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, name := range names {
		variants := x.Nodes[name]
		g.Go(func() error {
			n, err := s.mergeNode(gCtx, name, variants)
			if err != nil {
				return fmt.Errorf("merge node %q: %w", name, err)
			}
			nodes[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	nameToID := make(map[string]string, len(nodes))
	idToName := make(map[string]string, len(nodes))
	for _, n := range nodes {
		nameToID[n.Name] = n.ID
		idToName[n.ID] = n.Name
	}

	groups, order := groupEdges(x)
	edges := make([]common.Edge, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, key := range order {
		group := groups[key]
		sourceID, okS := nameToID[group[0].SourceID]
		targetID, okT := nameToID[group[0].TargetID]
		if !okS || !okT {
			logger.Debug("[Consolidate] Dropping edge with unresolved endpoint", "source", key.Source, "target", key.Target)
			continue
		}

		e, err := s.mergeEdge(ctx, sourceID, targetID, group, idToName)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		edges = append(edges, e)
	}

	logger.Debug("[Consolidate] Merged extraction", "nodes", len(nodes), "edges", len(edges))
	return common.NewGraph(nodes, edges)
}

// groupEdges groups edges by their sorted endpoint name pair. Order is first
// seen.
func groupEdges(x *common.Extraction) (map[common.EdgeKey][]common.Edge, []common.EdgeKey) {
	groups := make(map[common.EdgeKey][]common.Edge)
	order := make([]common.EdgeKey, 0)
	for _, key := range x.EdgeKeys() {
		sorted := common.SortedEdgeKey(key.Source, key.Target)
		if _, ok := groups[sorted]; !ok {
			order = append(order, sorted)
		}
		groups[sorted] = append(groups[sorted], x.Edges[key]...)
	}
	return groups, order
}

func (s *Service) mergeNode(ctx context.Context, name string, variants []common.Node) (common.Node, error) {
	types := make([]string, len(variants))
	for i, v := range variants {
		types[i] = v.Type
	}
	typ := majority(types)
	id := common.NodeID(name, typ)

	unlock, err := s.lock(ctx, id)
	if err != nil {
		return common.Node{}, err
	}
	defer unlock()

	var (
		descriptions []string
		chunkIDs     []string
	)
	existing, err := s.graph.GetNode(ctx, id)
	switch {
	case err == nil:
		descriptions = append(descriptions, common.SplitField(existing.Description)...)
		chunkIDs = append(chunkIDs, existing.ChunkIDs...)
	case errors.Is(err, store.ErrNotFound):
	default:
		return common.Node{}, fmt.Errorf("get node %s: %w", id, err)
	}
	for _, v := range variants {
		descriptions = append(descriptions, common.SplitField(v.Description)...)
		chunkIDs = append(chunkIDs, v.ChunkIDs...)
	}

	description, err := s.summarize(ctx, descriptions)
	if err != nil {
		return common.Node{}, fmt.Errorf("summarize node %s: %w", id, err)
	}

	node := common.NewNode(name, typ, description, common.UnionStrings(chunkIDs)...)
	if err := s.graph.UpsertNode(ctx, node); err != nil {
		return common.Node{}, fmt.Errorf("upsert node %s: %w", id, err)
	}
	if s.nodes != nil {
		if err := s.nodes.Upsert(ctx, store.NodeDocument(node)); err != nil {
			return common.Node{}, fmt.Errorf("index node %s: %w", id, err)
		}
	}
	return node, nil
}

func (s *Service) mergeEdge(
	ctx context.Context,
	sourceID string,
	targetID string,
	group []common.Edge,
	idToName map[string]string,
) (common.Edge, error) {
	types := make([]string, len(group))
	for i, e := range group {
		types[i] = e.Type
	}
	typ := majority(types)
	if typ == "" {
		typ = common.DefaultEdgeType
	}

	for _, id := range []string{sourceID, targetID} {
		if _, err := s.graph.GetNode(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return common.Edge{}, fmt.Errorf("%w: edge %s, node %s", ErrMissingEndpoint, common.EdgeID(sourceID, targetID, typ), id)
			}
			return common.Edge{}, fmt.Errorf("get node %s: %w", id, err)
		}
	}

	lockKey := common.EdgeID(min(sourceID, targetID), max(sourceID, targetID), typ)
	unlock, err := s.lock(ctx, lockKey)
	if err != nil {
		return common.Edge{}, err
	}
	defer unlock()

	var (
		weight       float64
		descriptions []string
		keywords     []string
		chunkIDs     []string
	)
	existing, err := s.graph.GetEdges(ctx, sourceID, targetID, typ)
	if err != nil {
		return common.Edge{}, fmt.Errorf("get edges %s-%s: %w", sourceID, targetID, err)
	}
	if len(existing) > 0 {
		// keep the stored orientation so the id stays stable
		prev := existing[0]
		sourceID, targetID = prev.SourceID, prev.TargetID
		weight += prev.Weight
		descriptions = append(descriptions, common.SplitField(prev.Description)...)
		keywords = append(keywords, prev.Keywords...)
		chunkIDs = append(chunkIDs, prev.ChunkIDs...)
	}
	for _, e := range group {
		weight += e.Weight
		descriptions = append(descriptions, common.SplitField(e.Description)...)
		keywords = append(keywords, e.Keywords...)
		chunkIDs = append(chunkIDs, e.ChunkIDs...)
	}

	description, err := s.summarize(ctx, descriptions)
	if err != nil {
		return common.Edge{}, fmt.Errorf("summarize edge %s-%s: %w", sourceID, targetID, err)
	}

	edge := common.NewEdge(
		sourceID,
		targetID,
		typ,
		description,
		common.UnionStrings(keywords),
		weight,
		common.UnionStrings(chunkIDs)...,
	)
	if err := s.graph.UpsertEdge(ctx, edge); err != nil {
		return common.Edge{}, fmt.Errorf("upsert edge %s: %w", edge.ID, err)
	}
	if s.edges != nil {
		doc := store.EdgeDocument(edge.ID, edge.SourceID, edge.TargetID, edge.Type, edgeContent(edge, idToName))
		if err := s.edges.Upsert(ctx, doc); err != nil {
			return common.Edge{}, fmt.Errorf("index edge %s: %w", edge.ID, err)
		}
	}
	return edge, nil
}

// edgeContent is the embedded text of an edge: keywords first, then the
// endpoint names and the description.
func edgeContent(e common.Edge, idToName map[string]string) string {
	source := idToName[e.SourceID]
	if source == "" {
		source = e.SourceID
	}
	target := idToName[e.TargetID]
	if target == "" {
		target = e.TargetID
	}
	return fmt.Sprintf("%s\t%s\t%s\n%s", strings.Join(e.Keywords, ", "), source, target, e.Description)
}

func (s *Service) summarize(ctx context.Context, descriptions []string) (string, error) {
	descriptions = common.UnionStrings(trimAll(descriptions))
	switch len(descriptions) {
	case 0:
		return "", nil
	case 1:
		return descriptions[0], nil
	}

	if s.summaryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.summaryTimeout)
		defer cancel()
	}
	return s.summarizer.Summarize(ctx, descriptions)
}

func (s *Service) lock(ctx context.Context, key string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	return unlock, nil
}

// majority returns the most frequent value, breaking ties by first
// occurrence. Empty values are ignored unless nothing else is present.
func majority(values []string) string {
	counts := make(map[string]int, len(values))
	best, bestCount := "", 0
	for _, v := range values {
		if v == "" {
			continue
		}
		counts[v]++
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.TrimSpace(v))
	}
	return out
}
