package common

import (
	"crypto/sha256"
	"encoding/hex"
)

const (
	nodeIDPrefix     = "ent-"
	edgeIDPrefix     = "rel-"
	chunkIDPrefix    = "chunk-"
	documentIDPrefix = "doc-"

	idHashLength = 32
)

func hashID(prefix string, content string) string {
	sum := sha256.Sum256([]byte(content))
	return prefix + hex.EncodeToString(sum[:])[:idHashLength]
}

// NodeID returns the content-addressed identifier of a node. Identity is the
// pair (name, type): the same name with a different type is a different node.
func NodeID(name, typ string) string {
	return hashID(nodeIDPrefix, name+" "+typ)
}

// EdgeID returns the content-addressed identifier of an edge between two
// endpoint ids with the given relation type.
func EdgeID(sourceID, targetID, typ string) string {
	return hashID(edgeIDPrefix, sourceID+targetID+typ)
}

// ChunkID returns the identifier of a text chunk derived from its content.
func ChunkID(content string) string {
	return hashID(chunkIDPrefix, content)
}

// DocumentID returns the identifier of a source document derived from its content.
func DocumentID(content string) string {
	return hashID(documentIDPrefix, content)
}
