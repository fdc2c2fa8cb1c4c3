// Package common contains the value types shared by extraction, consolidation
// and retrieval: nodes, edges, graphs, extractions, chunks and retrieval
// contexts.
package common

import (
	"errors"
	"fmt"
	"strings"
)

// FieldSeparator joins multi-valued text fields (e.g. several descriptions of
// the same entity that have not been summarized yet).
const FieldSeparator = "<SEP>"

// ErrInconsistentGraph is returned when an edge references a node id that is
// not part of the graph.
var ErrInconsistentGraph = errors.New("inconsistent graph")

// Graph represents a resolved set of nodes and edges. Every edge endpoint is a
// real node id contained in Nodes.
//
// A Graph should be created using NewGraph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// NewGraph builds a graph and verifies that every edge endpoint exists in the
// node set.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	ids := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = struct{}{}
	}
	for _, e := range edges {
		if _, ok := ids[e.SourceID]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown source node %s", ErrInconsistentGraph, e.ID, e.SourceID)
		}
		if _, ok := ids[e.TargetID]; !ok {
			return nil, fmt.Errorf("%w: edge %s references unknown target node %s", ErrInconsistentGraph, e.ID, e.TargetID)
		}
	}

	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	return &Graph{Nodes: nodes, Edges: edges}, nil
}

// NodeIDs returns the ids of all nodes in graph order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// SplitField splits a joined field into its non-empty, trimmed parts.
func SplitField(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, FieldSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinField joins values with FieldSeparator.
func JoinField(values []string) string {
	return strings.Join(values, FieldSeparator)
}

// UnionStrings returns the de-duplicated union of all lists in first-seen
// order. Empty strings are dropped.
func UnionStrings(lists ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range lists {
		for _, v := range list {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
