package chunk

import "context"

// IndexedChunk is a chunk ready for the search index.
type IndexedChunk struct {
	Chunk
	Embedding []float32
	// CaseType is the party-composition label of the owning case; empty for
	// lawyer input ingested before classification.
	CaseType string
}

// SearchQuery is a kNN query restricted to one chunk type.
type SearchQuery struct {
	Vector   []float32
	Type     Type
	CaseType string
	K        int
}

// SearchHit is one nearest neighbour, best first.
type SearchHit struct {
	CaseID  int64   `json:"case_id"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Type    Type    `json:"text_type"`
	Score   float64 `json:"score"`
}

// Index is the vector index holding embedded chunks.
type Index interface {
	Upsert(ctx context.Context, chunks []IndexedChunk) error
	Search(ctx context.Context, q SearchQuery) ([]SearchHit, error)
	// MaxCaseID returns ok=false on an empty index.
	MaxCaseID(ctx context.Context) (id int64, ok bool, err error)
	CountChunks(ctx context.Context, caseID int64, t Type) (int, error)
}

// CaseIDs returns the distinct case ids of hits in rank order.
func CaseIDs(hits []SearchHit) []int64 {
	seen := make(map[int64]bool, len(hits))
	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		if seen[h.CaseID] {
			continue
		}
		seen[h.CaseID] = true
		ids = append(ids, h.CaseID)
	}
	return ids
}
