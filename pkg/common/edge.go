package common

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultEdgeType is used for relationships that carry no explicit type.
const DefaultEdgeType = "RELATED"

// ErrNotEndpoint is returned by OtherEndpoint when the given node is not
// attached to the edge.
var ErrNotEndpoint = errors.New("node is not an endpoint of the edge")

// Edge represents a relationship between two nodes. Edges keep a source and a
// target, but storage treats them as undirected: lookups match either
// orientation.
//
// Inside an Extraction SourceID and TargetID hold entity names; after
// consolidation they hold node ids.
type Edge struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	TargetID    string   `json:"target_id"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Weight      float64  `json:"weight"`
	ChunkIDs    []string `json:"chunk_ids"`
}

// NewEdge creates an edge and derives its identifier from the endpoints and type.
func NewEdge(
	sourceID string,
	targetID string,
	typ string,
	description string,
	keywords []string,
	weight float64,
	chunkIDs ...string,
) Edge {
	if typ == "" {
		typ = DefaultEdgeType
	}
	return Edge{
		ID:          EdgeID(sourceID, targetID, typ),
		SourceID:    sourceID,
		TargetID:    targetID,
		Type:        typ,
		Description: description,
		Keywords:    slices.Clone(keywords),
		Weight:      weight,
		ChunkIDs:    slices.Clone(chunkIDs),
	}
}

// OtherEndpoint returns the endpoint opposite to nodeID.
func (e Edge) OtherEndpoint(nodeID string) (string, error) {
	switch nodeID {
	case e.SourceID:
		return e.TargetID, nil
	case e.TargetID:
		return e.SourceID, nil
	default:
		return "", fmt.Errorf("%w: node %s, edge %s", ErrNotEndpoint, nodeID, e.ID)
	}
}

// HasEndpoints reports whether the edge connects a and b in either direction.
func (e Edge) HasEndpoints(a, b string) bool {
	return (e.SourceID == a && e.TargetID == b) || (e.SourceID == b && e.TargetID == a)
}

// WithEndpoints returns a copy of e attached to new endpoints, with a
// recomputed id.
func (e Edge) WithEndpoints(sourceID, targetID string) Edge {
	c := e.clone()
	c.SourceID = sourceID
	c.TargetID = targetID
	c.ID = EdgeID(c.SourceID, c.TargetID, c.Type)
	return c
}

// WithType returns a copy of e with a new relation type and a recomputed id.
func (e Edge) WithType(typ string) Edge {
	c := e.clone()
	c.Type = typ
	c.ID = EdgeID(c.SourceID, c.TargetID, c.Type)
	return c
}

// WithDescription returns a copy of e with a new description. The id is kept.
func (e Edge) WithDescription(description string) Edge {
	c := e.clone()
	c.Description = description
	return c
}

// WithWeight returns a copy of e with a new weight. The id is kept.
func (e Edge) WithWeight(weight float64) Edge {
	c := e.clone()
	c.Weight = weight
	return c
}

// WithKeywords returns a copy of e with new keywords. The id is kept.
func (e Edge) WithKeywords(keywords []string) Edge {
	c := e.clone()
	c.Keywords = slices.Clone(keywords)
	return c
}

// WithChunkIDs returns a copy of e with new chunk ids. The id is kept.
func (e Edge) WithChunkIDs(chunkIDs []string) Edge {
	c := e.clone()
	c.ChunkIDs = slices.Clone(chunkIDs)
	return c
}

func (e Edge) clone() Edge {
	e.Keywords = slices.Clone(e.Keywords)
	e.ChunkIDs = slices.Clone(e.ChunkIDs)
	return e
}
