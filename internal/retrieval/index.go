package retrieval

import (
	"context"
	"sort"
	"time"
)

// Chunk is one indexed piece of a source document.
type Chunk struct {
	ID      string `json:"chunk_id"`
	Source  string `json:"source_file"`
	Page    int    `json:"page,omitempty"` // 0 when the loader has no page notion
	Ordinal int    `json:"ordinal"`
	Content string `json:"content"`
}

// Hit is a chunk scored against a query. Score is a similarity in [0, 1].
type Hit struct {
	Chunk Chunk
	Score float64
}

// Index is the searchable store of chunks.
type Index interface {
	Add(ctx context.Context, chunks []Chunk) error
	Delete(ctx context.Context, ids ...string) error
	// Query returns at most n hits for text, best first.
	Query(ctx context.Context, text string, n int) ([]Hit, error)
	Count() int
	Close() error
}

// DocumentInfo describes one ingested document.
type DocumentInfo struct {
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	Available  bool      `json:"available"`
	Kind       string    `json:"kind,omitempty"`
	AddedAt    time.Time `json:"added_at,omitempty"`
}

// Catalog records which documents were ingested and keeps their chunks addressable by source.
type Catalog interface {
	Register(ctx context.Context, doc DocumentInfo, chunks []Chunk) error
	List(ctx context.Context) ([]DocumentInfo, error)
	// Chunks returns the chunks of source, matched case-insensitively, ordered by page then ordinal.
	Chunks(ctx context.Context, source string) ([]Chunk, error)
}

// sortHits orders hits by descending score, breaking ties on chunk id.
func sortHits(hits []Hit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Chunk.ID < hits[j].Chunk.ID
	})
}
