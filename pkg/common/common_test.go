package common

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNodeIDDeterminism(t *testing.T) {
	a := NewNode("APPLE", "ORGANIZATION", "Maker of phones.", "chunk-1")
	b := NewNode("APPLE", "ORGANIZATION", "A company from Cupertino.", "chunk-2")
	if a.ID != b.ID {
		t.Fatalf("same name and type must share an id: %s != %s", a.ID, b.ID)
	}

	fruit := NewNode("APPLE", "FOOD", "A fruit.")
	if fruit.ID == a.ID {
		t.Fatalf("same name with a different type must not share an id")
	}

	if !strings.HasPrefix(a.ID, "ent-") {
		t.Fatalf("expected ent- prefix, got %s", a.ID)
	}
}

func TestNodeWithMethods(t *testing.T) {
	n := NewNode("HAWAII", "LOCATION", "A US state.", "chunk-1")

	described := n.WithDescription("An island state.")
	if described.ID != n.ID {
		t.Fatalf("changing the description must keep the id")
	}
	if n.Description != "A US state." {
		t.Fatalf("original node was modified: %q", n.Description)
	}

	chunks := described.WithChunkIDs([]string{"chunk-1", "chunk-2"})
	if chunks.ID != n.ID {
		t.Fatalf("changing chunk ids must keep the id")
	}
	chunks.ChunkIDs[0] = "mutated"
	if n.ChunkIDs[0] != "chunk-1" {
		t.Fatalf("chunk ids share backing storage with the original")
	}

	renamed := n.WithName("OAHU")
	if renamed.ID == n.ID || renamed.ID != NodeID("OAHU", "LOCATION") {
		t.Fatalf("renaming must recompute the id, got %s", renamed.ID)
	}

	retyped := n.WithType("EVENT")
	if retyped.ID != NodeID("HAWAII", "EVENT") {
		t.Fatalf("retyping must recompute the id, got %s", retyped.ID)
	}
}

func TestEdgeOtherEndpoint(t *testing.T) {
	e := NewEdge("a", "b", "", "a knows b", nil, 1)
	if e.Type != DefaultEdgeType {
		t.Fatalf("expected default type, got %q", e.Type)
	}

	other, err := e.OtherEndpoint("a")
	if err != nil || other != "b" {
		t.Fatalf("OtherEndpoint(a) = %q, %v", other, err)
	}
	other, err = e.OtherEndpoint("b")
	if err != nil || other != "a" {
		t.Fatalf("OtherEndpoint(b) = %q, %v", other, err)
	}
	if _, err := e.OtherEndpoint("c"); !errors.Is(err, ErrNotEndpoint) {
		t.Fatalf("expected ErrNotEndpoint, got %v", err)
	}
}

func TestEdgeWithMethods(t *testing.T) {
	e := NewEdge("a", "b", "KNOWS", "desc", []string{"friend"}, 2, "chunk-1")

	if got := e.WithWeight(5).ID; got != e.ID {
		t.Fatalf("weight must not change the id")
	}
	if got := e.WithDescription("other").ID; got != e.ID {
		t.Fatalf("description must not change the id")
	}
	moved := e.WithEndpoints("a", "c")
	if moved.ID != EdgeID("a", "c", "KNOWS") {
		t.Fatalf("endpoints must recompute the id")
	}
	retyped := e.WithType("LIKES")
	if retyped.ID != EdgeID("a", "b", "LIKES") {
		t.Fatalf("type must recompute the id")
	}
}

func TestNewGraph(t *testing.T) {
	a := NewNode("A", "PERSON", "")
	b := NewNode("B", "PERSON", "")
	good := NewEdge(a.ID, b.ID, "", "", nil, 1)

	g, err := NewGraph([]Node{a, b}, []Edge{good})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(g.NodeIDs(), []string{a.ID, b.ID}) {
		t.Fatalf("unexpected node ids %v", g.NodeIDs())
	}

	bad := NewEdge(a.ID, "ent-missing", "", "", nil, 1)
	_, err = NewGraph([]Node{a, b}, []Edge{good, bad})
	if !errors.Is(err, ErrInconsistentGraph) {
		t.Fatalf("expected ErrInconsistentGraph, got %v", err)
	}
	if !strings.Contains(err.Error(), bad.ID) {
		t.Fatalf("error should name the offending edge, got %v", err)
	}

	empty, err := NewGraph(nil, nil)
	if err != nil || empty.Nodes == nil || empty.Edges == nil {
		t.Fatalf("empty graph should have non-nil slices, got %+v, %v", empty, err)
	}
}

func TestExtractionPrune(t *testing.T) {
	x := NewExtraction()
	x.AddNode(NewNode("A", "PERSON", ""))
	x.AddNode(NewNode("B", "PERSON", ""))
	x.AddEdge(NewEdge("A", "B", "", "kept", nil, 1))
	x.AddEdge(NewEdge("A", "GHOST", "", "dropped", nil, 1))

	dropped := x.Prune()
	if dropped != 1 {
		t.Fatalf("expected 1 dropped edge, got %d", dropped)
	}
	if !reflect.DeepEqual(x.EdgeKeys(), []EdgeKey{{Source: "A", Target: "B"}}) {
		t.Fatalf("unexpected edge keys %v", x.EdgeKeys())
	}
}

func TestExtractionOrderAndMerge(t *testing.T) {
	x := NewExtraction()
	x.AddNode(NewNode("Z", "PERSON", ""))
	x.AddNode(NewNode("A", "PERSON", ""))
	x.AddNode(NewNode("Z", "ORGANIZATION", ""))

	if !reflect.DeepEqual(x.NodeNames(), []string{"Z", "A"}) {
		t.Fatalf("expected first-seen order, got %v", x.NodeNames())
	}

	y := NewExtraction()
	y.AddNode(NewNode("M", "PERSON", ""))
	y.Keywords = []string{"k1", "k2"}
	x.Keywords = []string{"k2"}
	x.Merge(y)

	if !reflect.DeepEqual(x.NodeNames(), []string{"Z", "A", "M"}) {
		t.Fatalf("unexpected names after merge %v", x.NodeNames())
	}
	if x.NodeCount() != 4 {
		t.Fatalf("expected 4 node variants, got %d", x.NodeCount())
	}
	if !reflect.DeepEqual(x.Keywords, []string{"k2", "k1"}) {
		t.Fatalf("unexpected keywords %v", x.Keywords)
	}
}

func TestSplitJoinField(t *testing.T) {
	joined := JoinField([]string{"one", "two"})
	if joined != "one<SEP>two" {
		t.Fatalf("unexpected join %q", joined)
	}
	if got := SplitField(" one <SEP><SEP> two "); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Fatalf("unexpected split %v", got)
	}
	if got := SplitField("  "); got != nil {
		t.Fatalf("expected nil for blank input, got %v", got)
	}
}
