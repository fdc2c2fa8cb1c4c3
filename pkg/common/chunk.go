package common

// Chunk represents a contiguous, token-limited segment of a source document.
// Chunks are the provenance of nodes and edges: both keep the ids of the
// chunks they were extracted from.
type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Index      int    `json:"index"`
	Tokens     int    `json:"tokens"`
	Content    string `json:"content"`
}

// NewChunk creates a chunk whose id is derived from its content.
func NewChunk(documentID string, index int, tokens int, content string) Chunk {
	return Chunk{
		ID:         ChunkID(content),
		DocumentID: documentID,
		Index:      index,
		Tokens:     tokens,
		Content:    content,
	}
}

// Document is the source a chunk was cut from. Source is a human readable
// origin (file name, URL, object key) used for references.
type Document struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NewDocument creates a document whose id is derived from its content.
func NewDocument(source string, content string, metadata map[string]string) Document {
	return Document{
		ID:       DocumentID(content),
		Source:   source,
		Content:  content,
		Metadata: metadata,
	}
}
