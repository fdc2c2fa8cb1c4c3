package query

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/graphrag/pkg/ai"
	"github.com/OFFIS-RIT/graphrag/pkg/common"
	"github.com/OFFIS-RIT/graphrag/pkg/store"
	"github.com/OFFIS-RIT/graphrag/pkg/store/memory"
)

type fixture struct {
	engine *Engine
	trace  *QueryTrace

	obama, hawaii, year   common.Node
	birthplace, elected   common.Edge
	bornChunk, electChunk common.Chunk
	doc                   common.Document
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	graph := memory.NewGraphStore()
	nodes := memory.NewVectorStore(nil)
	edges := memory.NewVectorStore(nil)
	chunkVectors := memory.NewVectorStore(nil)
	chunks := memory.NewChunkStore()

	f := &fixture{trace: NewQueryTrace()}
	f.doc = common.NewDocument("bio.txt", "Barack Obama was born in Hawaii. He was elected president in 2008.", nil)
	f.bornChunk = common.NewChunk(f.doc.ID, 0, 6, "Barack Obama was born in Hawaii.")
	f.electChunk = common.NewChunk(f.doc.ID, 1, 7, "He was elected president in 2008.")

	f.obama = common.NewNode("Barack Obama", "PERSON", "Barack Obama is a former US president.", f.bornChunk.ID, f.electChunk.ID)
	f.hawaii = common.NewNode("Hawaii", "LOCATION", "Hawaii is a US state.", f.bornChunk.ID)
	f.year = common.NewNode("2008", "DATE", "The year 2008.", f.electChunk.ID)
	f.birthplace = common.NewEdge(f.obama.ID, f.hawaii.ID, "", "Barack Obama was born in Hawaii.", []string{"birthplace"}, 2, f.bornChunk.ID)
	f.elected = common.NewEdge(f.obama.ID, f.year.ID, "", "Barack Obama was elected in 2008.", []string{"election"}, 1, f.electChunk.ID)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("fixture setup: %v", err)
		}
	}
	for _, n := range []common.Node{f.obama, f.hawaii, f.year} {
		must(graph.UpsertNode(ctx, n))
		must(nodes.Upsert(ctx, store.NodeDocument(n)))
	}
	for _, e := range []common.Edge{f.birthplace, f.elected} {
		must(graph.UpsertEdge(ctx, e))
		content := e.Keywords[0] + "\t" + e.Description
		must(edges.Upsert(ctx, store.EdgeDocument(e.ID, e.SourceID, e.TargetID, e.Type, content)))
	}
	// present in the vector index only
	must(nodes.Upsert(ctx, store.VectorDocument{ID: "ent-ghost", Content: "obama ghost"}))

	must(chunks.UpsertDocument(ctx, f.doc))
	must(chunks.UpsertChunks(ctx, f.bornChunk, f.electChunk))
	must(chunkVectors.Upsert(ctx, store.ChunkDocument(f.bornChunk), store.ChunkDocument(f.electChunk)))

	f.engine = NewEngine(NewEngineParams{
		Graph:        graph,
		Nodes:        nodes,
		Edges:        edges,
		ChunkVectors: chunkVectors,
		Chunks:       chunks,
		Tokenizer:    ai.WordTokenizer{},
		Tracer:       f.trace,
	})
	return f
}

func nodeIDs(c *common.Context) []string {
	out := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		out[i] = n.ID
	}
	return out
}

func edgeIDs(c *common.Context) []string {
	out := make([]string, len(c.Edges))
	for i, e := range c.Edges {
		out[i] = e.ID
	}
	return out
}

func chunkIDs(c *common.Context) []string {
	out := make([]string, len(c.Chunks))
	for i, ch := range c.Chunks {
		out[i] = ch.ID
	}
	return out
}

func TestScoreChunks(t *testing.T) {
	node := func(id string, chunks ...string) common.ContextNode {
		return common.ContextNode{Node: common.Node{ID: id, ChunkIDs: chunks}}
	}
	edge := func(a, b string) common.Edge {
		return common.Edge{ID: a + "-" + b, SourceID: a, TargetID: b}
	}

	tests := []struct {
		name       string
		primary    []common.ContextNode
		edges      []common.Edge
		nodeChunks map[string][]string
		want       []scoredChunk
	}{
		{
			name:    "one shared chunk per edge",
			primary: []common.ContextNode{node("A", "x", "y", "z")},
			edges:   []common.Edge{edge("A", "B"), edge("A", "C"), edge("A", "D")},
			nodeChunks: map[string][]string{
				"A": {"x", "y", "z"}, "B": {"x"}, "C": {"y"}, "D": {"z"},
			},
			want: []scoredChunk{{"x", 1}, {"y", 1}, {"z", 1}},
		},
		{
			name:    "two edges sharing a chunk",
			primary: []common.ContextNode{node("A", "y", "x")},
			edges:   []common.Edge{edge("A", "B"), edge("A", "C")},
			nodeChunks: map[string][]string{
				"A": {"y", "x"}, "B": {"x"}, "C": {"x"},
			},
			want: []scoredChunk{{"x", 2}, {"y", 0}},
		},
		{
			name:    "ties keep encounter order",
			primary: []common.ContextNode{node("A", "p", "q"), node("B", "r")},
			edges:   []common.Edge{edge("A", "B")},
			nodeChunks: map[string][]string{
				"A": {"p", "q"}, "B": {"r", "q"},
			},
			want: []scoredChunk{{"q", 1}, {"p", 0}, {"r", 0}},
		},
		{
			name:       "no edges",
			primary:    []common.ContextNode{node("A", "p")},
			nodeChunks: map[string][]string{"A": {"p"}},
			want:       []scoredChunk{{"p", 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreChunks(tt.primary, tt.edges, tt.nodeChunks)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("scoreChunks() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		input   string
		want    []string
		wantErr bool
	}{
		{input: "   ,  ,   ", wantErr: true},
		{input: "", wantErr: true},
		{input: "k1,k2,k3", want: []string{"k1", "k2", "k3"}},
		{input: " a , a ,b", want: []string{"a", "b"}},
	}
	for _, tt := range tests {
		got, err := ParseKeywords(tt.input)
		if tt.wantErr {
			if !errors.Is(err, ErrEmptyKeywords) {
				t.Fatalf("ParseKeywords(%q) error = %v, want ErrEmptyKeywords", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseKeywords(%q) error = %v", tt.input, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("ParseKeywords(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAugmentLocal(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "obama", Params{
		Mode:              ModeLocal,
		IncludeChunks:     true,
		IncludeReferences: true,
	})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if got == nil {
		t.Fatalf("Augment() returned no context")
	}

	if !reflect.DeepEqual(nodeIDs(got), []string{f.obama.ID}) {
		t.Fatalf("nodes = %v", nodeIDs(got))
	}
	if got.Nodes[0].Degree != 2 || got.Nodes[0].Order != 2 {
		t.Fatalf("node degree/order = %d/%d, want 2/2", got.Nodes[0].Degree, got.Nodes[0].Order)
	}
	// equal endpoint degree, weight breaks the tie
	if !reflect.DeepEqual(edgeIDs(got), []string{f.birthplace.ID, f.elected.ID}) {
		t.Fatalf("edges = %v", edgeIDs(got))
	}
	if got.Edges[0].Degree != 3 {
		t.Fatalf("edge degree = %d, want 3", got.Edges[0].Degree)
	}
	if !reflect.DeepEqual(chunkIDs(got), []string{f.bornChunk.ID, f.electChunk.ID}) {
		t.Fatalf("chunks = %v", chunkIDs(got))
	}
	if got.Chunks[0].Order != 1 || got.Chunks[1].Index != 1 {
		t.Fatalf("chunk order/index = %+v", got.Chunks)
	}
	if len(got.References) != 1 || got.References[0].Source != "bio.txt" {
		t.Fatalf("references = %+v", got.References)
	}

	snap := f.trace.Snapshot()
	if len(snap.UsedChunkIDs) != 2 || len(snap.QueriedNodeIDs) != 2 {
		t.Fatalf("trace = %+v", snap)
	}
}

func TestAugmentLocalNoMatch(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "zebra", Params{Mode: ModeLocal})
	if err != nil || got != nil {
		t.Fatalf("Augment() = %v, %v, want nil, nil", got, err)
	}
}

func TestAugmentLocalSkipsDesyncedChunks(t *testing.T) {
	ctx := context.Background()
	graph := memory.NewGraphStore()
	nodes := memory.NewVectorStore(nil)
	chunks := memory.NewChunkStore()

	doc := common.NewDocument("bio.txt", "Barack Obama was born in Hawaii.", nil)
	born := common.NewChunk(doc.ID, 0, 6, "Barack Obama was born in Hawaii.")
	orphan := common.NewChunk("doc-unknown", 0, 4, "Obama visited Honolulu often.")
	dangling := "chunk-missing"

	obama := common.NewNode("Barack Obama", "PERSON", "Barack Obama is a former US president.", born.ID, orphan.ID, dangling)
	hawaii := common.NewNode("Hawaii", "LOCATION", "Hawaii is a US state.", born.ID, orphan.ID, dangling)
	edge := common.NewEdge(obama.ID, hawaii.ID, "", "Barack Obama was born in Hawaii.", []string{"birthplace"}, 1, born.ID)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	for _, n := range []common.Node{obama, hawaii} {
		must(graph.UpsertNode(ctx, n))
		must(nodes.Upsert(ctx, store.NodeDocument(n)))
	}
	must(graph.UpsertEdge(ctx, edge))
	must(chunks.UpsertDocument(ctx, doc))
	must(chunks.UpsertChunks(ctx, born, orphan))

	engine := NewEngine(NewEngineParams{
		Graph:     graph,
		Nodes:     nodes,
		Edges:     memory.NewVectorStore(nil),
		Chunks:    chunks,
		Tokenizer: ai.WordTokenizer{},
	})
	got, err := engine.Augment(ctx, "obama", Params{
		Mode:              ModeLocal,
		IncludeChunks:     true,
		IncludeReferences: true,
	})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if got == nil {
		t.Fatalf("Augment() returned no context")
	}
	if want := []string{born.ID, orphan.ID}; !reflect.DeepEqual(chunkIDs(got), want) {
		t.Fatalf("chunks = %v, want %v", chunkIDs(got), want)
	}
	if len(got.References) != 1 || got.References[0].DocumentID != doc.ID {
		t.Fatalf("references = %+v, want only %s", got.References, doc.ID)
	}
}

func TestAugmentGlobal(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "birthplace", Params{Mode: ModeGlobal, IncludeChunks: true})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if !reflect.DeepEqual(edgeIDs(got), []string{f.birthplace.ID}) {
		t.Fatalf("edges = %v", edgeIDs(got))
	}
	if !reflect.DeepEqual(nodeIDs(got), []string{f.obama.ID, f.hawaii.ID}) {
		t.Fatalf("nodes = %v", nodeIDs(got))
	}
	if !reflect.DeepEqual(chunkIDs(got), []string{f.bornChunk.ID}) {
		t.Fatalf("chunks = %v", chunkIDs(got))
	}
	if got.References == nil || len(got.References) != 0 {
		t.Fatalf("references should be empty when not requested: %v", got.References)
	}
}

func TestAugmentKeywords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.engine.Augment(ctx, "   ,  ,   ", Params{Mode: ModeKeywords}); !errors.Is(err, ErrEmptyKeywords) {
		t.Fatalf("expected ErrEmptyKeywords, got %v", err)
	}

	got, err := f.engine.Augment(ctx, "k1,k2,k3", Params{Mode: ModeKeywords})
	if err != nil || got != nil {
		t.Fatalf("unmatched keywords = %v, %v, want nil, nil", got, err)
	}

	got, err = f.engine.Augment(ctx, "election, birthplace", Params{Mode: ModeKeywords})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if !reflect.DeepEqual(edgeIDs(got), []string{f.birthplace.ID, f.elected.ID}) {
		t.Fatalf("edges = %v", edgeIDs(got))
	}
	if len(got.Chunks) != 0 {
		t.Fatalf("chunks must be empty without IncludeChunks")
	}
}

func TestAugmentHybrid(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "who is obama", Params{
		IncludeChunks:     true,
		LowLevelKeywords:  []string{"obama"},
		HighLevelKeywords: []string{"election"},
	})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if !reflect.DeepEqual(nodeIDs(got), []string{f.obama.ID, f.year.ID}) {
		t.Fatalf("nodes = %v", nodeIDs(got))
	}
	if !reflect.DeepEqual(edgeIDs(got), []string{f.birthplace.ID, f.elected.ID}) {
		t.Fatalf("edges = %v", edgeIDs(got))
	}
	if !reflect.DeepEqual(chunkIDs(got), []string{f.bornChunk.ID, f.electChunk.ID}) {
		t.Fatalf("chunks = %v", chunkIDs(got))
	}
	if got.Input != "who is obama" {
		t.Fatalf("input = %q", got.Input)
	}
}

func TestAugmentNaive(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "hawaii", Params{Mode: ModeNaive})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if !reflect.DeepEqual(chunkIDs(got), []string{f.bornChunk.ID}) {
		t.Fatalf("chunks = %v", chunkIDs(got))
	}
	if len(got.Nodes) != 0 || len(got.Edges) != 0 {
		t.Fatalf("naive context must not carry graph data")
	}
}

func TestAugmentUnknownMode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.Augment(context.Background(), "x", Params{Mode: "fancy"}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

type fakeKeywords struct {
	kw  Keywords
	err error
}

func (f fakeKeywords) ExtractKeywords(ctx context.Context, input string) (Keywords, error) {
	return f.kw, f.err
}

func TestResolveKeywords(t *testing.T) {
	e := NewEngine(NewEngineParams{Keywords: fakeKeywords{kw: Keywords{HighLevel: []string{"h"}, LowLevel: []string{"l"}}}})
	low, high := e.resolveKeywords(context.Background(), "q", Params{LowLevelKeywords: []string{"given"}})
	if !reflect.DeepEqual(low, []string{"given"}) || !reflect.DeepEqual(high, []string{"h"}) {
		t.Fatalf("resolveKeywords() = %v, %v", low, high)
	}

	failing := NewEngine(NewEngineParams{Keywords: fakeKeywords{err: errors.New("boom")}})
	low, high = failing.resolveKeywords(context.Background(), "q", Params{})
	if low != nil || high != nil {
		t.Fatalf("failed extraction should fall back to raw input, got %v, %v", low, high)
	}
	if got := keywordQuery(nil, "raw"); got != "raw" {
		t.Fatalf("keywordQuery() = %q", got)
	}
	if got := keywordQuery([]string{"a", "b"}, "raw"); got != "a, b" {
		t.Fatalf("keywordQuery() = %q", got)
	}
}

func TestMergeContexts(t *testing.T) {
	n := func(id string, order int) common.ContextNode {
		return common.ContextNode{Node: common.Node{ID: id}, Order: order}
	}
	c := func(id string, order int) common.ContextChunk {
		return common.ContextChunk{ID: id, Order: order}
	}

	tests := []struct {
		name       string
		a, b       *common.Context
		wantNodes  []common.ContextNode
		wantChunks []common.ContextChunk
	}{
		{
			name:      "better rank in b wins",
			a:         &common.Context{Nodes: []common.ContextNode{n("y", 3), n("x", 1)}},
			b:         &common.Context{Nodes: []common.ContextNode{n("x", 5), n("z", 2)}},
			wantNodes: []common.ContextNode{n("y", 3), n("x", 5), n("z", 2)},
		},
		{
			name:      "better rank in a wins over a larger order",
			a:         &common.Context{Nodes: []common.ContextNode{n("x", 1), n("y", 3)}},
			b:         &common.Context{Nodes: []common.ContextNode{n("z", 2), n("x", 50)}},
			wantNodes: []common.ContextNode{n("x", 1), n("y", 3), n("z", 2)},
		},
		{
			name:       "equal rank keeps a",
			a:          &common.Context{Chunks: []common.ContextChunk{c("k", 2)}},
			b:          &common.Context{Chunks: []common.ContextChunk{c("k", 900)}},
			wantChunks: []common.ContextChunk{c("k", 2)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeContexts(tt.a, tt.b)
			if len(got.Nodes) > 0 || len(tt.wantNodes) > 0 {
				if !reflect.DeepEqual(got.Nodes, tt.wantNodes) {
					t.Fatalf("merged nodes = %v, want %v", got.Nodes, tt.wantNodes)
				}
			}
			if len(got.Chunks) > 0 || len(tt.wantChunks) > 0 {
				if !reflect.DeepEqual(got.Chunks, tt.wantChunks) {
					t.Fatalf("merged chunks = %v, want %v", got.Chunks, tt.wantChunks)
				}
			}
		})
	}

	a := &common.Context{Nodes: []common.ContextNode{n("x", 1)}}
	if mergeContexts(nil, a) != a || mergeContexts(a, nil) != a {
		t.Fatalf("merging with nil must return the other side")
	}
}

func TestTruncate(t *testing.T) {
	items := []string{"a b", "c d", "e"}
	id := func(s string) string { return s }
	tok := ai.WordTokenizer{}

	tests := []struct {
		budget int
		want   []string
	}{
		{budget: 0, want: items},
		{budget: -1, want: items},
		{budget: 4, want: []string{"a b", "c d"}},
		{budget: 5, want: items},
		{budget: 1, want: []string{}},
	}
	for _, tt := range tests {
		got := truncate(tok, items, tt.budget, id)
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("truncate(budget=%d) = %v, want %v", tt.budget, got, tt.want)
		}
	}
}

func TestBudgetEmptiesContext(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Augment(context.Background(), "obama", Params{
		Mode:          ModeLocal,
		MaxNodeTokens: 1,
		MaxEdgeTokens: 1,
	})
	if err != nil {
		t.Fatalf("Augment() error = %v", err)
	}
	if got == nil {
		t.Fatalf("Augment() = nil, want an empty context distinct from no match")
	}
	if !got.IsEmpty() || got.Nodes == nil || got.Edges == nil || got.Chunks == nil || got.References == nil {
		t.Fatalf("Augment() = %+v, want empty non-nil sections", got)
	}
}
