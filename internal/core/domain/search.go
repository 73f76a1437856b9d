package domain

// Chunk is one indexed segment of a document.
type Chunk struct {
	DocumentID string
	ClientID   *int64
	Filename   string
	DocType    DocType
	Index      int
	Text       string
}

type SearchFilter struct {
	ClientID   *int64
	DocumentID string
	MinScore   float64
}

type SearchHit struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	ClientID   *int64  `json:"client_id,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

type IndexStats struct {
	Collection string `json:"collection"`
	Points     int64  `json:"points"`
}
