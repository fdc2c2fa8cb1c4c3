package common

// Context is the bounded, ranked bundle returned by a retrieval strategy for a
// single query. It is created once per query and never persisted.
//
// Every element carries an Order and an Index:
//   - Order: relevance score, higher is more relevant (degree for nodes and
//     edges, co-occurrence score for chunks)
//   - Index: 0-based display position inside its section
type Context struct {
	Input      string             `json:"input"`
	Nodes      []ContextNode      `json:"nodes"`
	Edges      []ContextEdge      `json:"edges"`
	Chunks     []ContextChunk     `json:"chunks"`
	References []ContextReference `json:"references"`
}

// ContextNode is a node annotated with its degree in the persistent graph.
type ContextNode struct {
	Node
	Degree int `json:"degree"`
	Order  int `json:"order"`
	Index  int `json:"index"`
}

// ContextEdge is an edge annotated with the summed degree of its endpoints.
type ContextEdge struct {
	Edge
	Degree int `json:"degree"`
	Order  int `json:"order"`
	Index  int `json:"index"`
}

// ContextChunk is a source passage.
type ContextChunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Order      int    `json:"order"`
	Index      int    `json:"index"`
}

// ContextReference points at the document behind one or more context chunks.
type ContextReference struct {
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Order      int               `json:"order"`
	Index      int               `json:"index"`
}

// IsEmpty reports whether the context carries no data at all.
func (c *Context) IsEmpty() bool {
	return c == nil || (len(c.Nodes) == 0 && len(c.Edges) == 0 && len(c.Chunks) == 0)
}

// Reindex assigns sequential display positions to every section.
func (c *Context) Reindex() {
	for i := range c.Nodes {
		c.Nodes[i].Index = i
	}
	for i := range c.Edges {
		c.Edges[i].Index = i
	}
	for i := range c.Chunks {
		c.Chunks[i].Index = i
	}
	for i := range c.References {
		c.References[i].Index = i
	}
}
