package common

import (
	"sort"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"
)

// EdgeKey identifies an endpoint pair inside an Extraction. Source and Target
// are entity names, not graph ids.
type EdgeKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// SortedEdgeKey returns the key for the pair (a, b) with names in lexical
// order, so both orientations of a relationship share one key.
func SortedEdgeKey(a, b string) EdgeKey {
	if b < a {
		a, b = b, a
	}
	return EdgeKey{Source: a, Target: b}
}

// Extraction is the raw, unresolved output of one extraction pass. Nodes are
// keyed by name (a name may carry several type variants), edges by endpoint
// name pair. Insertion order is remembered so that first-seen tie breaks are
// deterministic.
//
// An Extraction should be created using NewExtraction.
type Extraction struct {
	Nodes    map[string][]Node  `json:"nodes"`
	Edges    map[EdgeKey][]Edge `json:"-"`
	Keywords []string           `json:"keywords"`

	nodeOrder []string
	edgeOrder []EdgeKey
}

// NewExtraction returns an empty extraction.
func NewExtraction() *Extraction {
	return &Extraction{
		Nodes: make(map[string][]Node),
		Edges: make(map[EdgeKey][]Edge),
	}
}

// AddNode appends a node variant under its name.
func (x *Extraction) AddNode(n Node) {
	if _, ok := x.Nodes[n.Name]; !ok {
		x.nodeOrder = append(x.nodeOrder, n.Name)
	}
	x.Nodes[n.Name] = append(x.Nodes[n.Name], n)
}

// AddEdge appends an edge under its (source name, target name) pair.
func (x *Extraction) AddEdge(e Edge) {
	key := EdgeKey{Source: e.SourceID, Target: e.TargetID}
	if _, ok := x.Edges[key]; !ok {
		x.edgeOrder = append(x.edgeOrder, key)
	}
	x.Edges[key] = append(x.Edges[key], e)
}

// Merge appends all nodes, edges and keywords of other into x.
func (x *Extraction) Merge(other *Extraction) {
	if other == nil {
		return
	}
	for _, name := range other.NodeNames() {
		for _, n := range other.Nodes[name] {
			x.AddNode(n)
		}
	}
	for _, key := range other.EdgeKeys() {
		for _, e := range other.Edges[key] {
			x.AddEdge(e)
		}
	}
	x.Keywords = UnionStrings(x.Keywords, other.Keywords)
}

// NodeNames returns node names in first-seen order. Names added by writing
// the map directly are appended in lexical order.
func (x *Extraction) NodeNames() []string {
	names := make([]string, 0, len(x.Nodes))
	seen := make(map[string]struct{}, len(x.Nodes))
	for _, name := range x.nodeOrder {
		if _, ok := x.Nodes[name]; !ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	rest := make([]string, 0)
	for name := range x.Nodes {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// EdgeKeys returns endpoint pairs in first-seen order. Keys added by writing
// the map directly are appended in lexical order.
func (x *Extraction) EdgeKeys() []EdgeKey {
	keys := make([]EdgeKey, 0, len(x.Edges))
	seen := make(map[EdgeKey]struct{}, len(x.Edges))
	for _, key := range x.edgeOrder {
		if _, ok := x.Edges[key]; !ok {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	rest := make([]EdgeKey, 0)
	for key := range x.Edges {
		if _, ok := seen[key]; !ok {
			rest = append(rest, key)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Source != rest[j].Source {
			return rest[i].Source < rest[j].Source
		}
		return rest[i].Target < rest[j].Target
	})
	return append(keys, rest...)
}

// NodeCount returns the number of node variants.
func (x *Extraction) NodeCount() int {
	total := 0
	for _, variants := range x.Nodes {
		total += len(variants)
	}
	return total
}

// EdgeCount returns the number of edges.
func (x *Extraction) EdgeCount() int {
	total := 0
	for _, edges := range x.Edges {
		total += len(edges)
	}
	return total
}

// IsEmpty reports whether the extraction holds neither nodes nor edges.
func (x *Extraction) IsEmpty() bool {
	return x == nil || (len(x.Nodes) == 0 && len(x.Edges) == 0)
}

// Prune drops every edge whose endpoint names are not node keys and returns
// the number of dropped edges. Dropping is logged, never an error: LLMs
// regularly reference entities they did not emit.
func (x *Extraction) Prune() int {
	dropped := 0
	for _, key := range x.EdgeKeys() {
		_, okS := x.Nodes[key.Source]
		_, okT := x.Nodes[key.Target]
		if okS && okT {
			continue
		}
		dropped += len(x.Edges[key])
		logger.Warn("[Extraction] Dropping edge with unknown endpoint", "source", key.Source, "target", key.Target)
		delete(x.Edges, key)
	}
	return dropped
}
