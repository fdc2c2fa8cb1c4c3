package common

import "slices"

// Node represents an entity in the graph. An entity can be an organization,
// person, location, or any other relevant concept.
//
// Nodes are values: every "update" builds a new Node. The ID is a pure
// function of Name and Type and is only recomputed when one of them changes.
type Node struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	ChunkIDs    []string `json:"chunk_ids"`
}

// NewNode creates a node and derives its identifier from name and type.
func NewNode(name, typ, description string, chunkIDs ...string) Node {
	return Node{
		ID:          NodeID(name, typ),
		Name:        name,
		Type:        typ,
		Description: description,
		ChunkIDs:    slices.Clone(chunkIDs),
	}
}

// WithDescription returns a copy of n with a new description. The id is kept.
func (n Node) WithDescription(description string) Node {
	c := n.clone()
	c.Description = description
	return c
}

// WithChunkIDs returns a copy of n with the given chunk ids. The id is kept.
func (n Node) WithChunkIDs(chunkIDs []string) Node {
	c := n.clone()
	c.ChunkIDs = slices.Clone(chunkIDs)
	return c
}

// WithName returns a copy of n with a new name and a recomputed id.
func (n Node) WithName(name string) Node {
	c := n.clone()
	c.Name = name
	c.ID = NodeID(c.Name, c.Type)
	return c
}

// WithType returns a copy of n with a new type and a recomputed id.
func (n Node) WithType(typ string) Node {
	c := n.clone()
	c.Type = typ
	c.ID = NodeID(c.Name, c.Type)
	return c
}

func (n Node) clone() Node {
	n.ChunkIDs = slices.Clone(n.ChunkIDs)
	return n
}
