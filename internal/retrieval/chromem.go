package retrieval

import (
	"context"
	"fmt"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
)

const (
	metaSource  = "source"
	metaPage    = "page"
	metaOrdinal = "ordinal"
)

// ChromemIndex is the embedded vector backend. Similarity is cosine similarity
// of the embeddings, clamped to [0, 1].
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// NewChromemIndex opens (or creates) the named collection. An empty persistPath keeps it in memory.
func NewChromemIndex(persistPath, collection string, compress bool, embed chromem.EmbeddingFunc) (*ChromemIndex, error) {
	var (
		db  *chromem.DB
		err error
	)
	if persistPath == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(persistPath, compress)
		if err != nil {
			return nil, fmt.Errorf("open vector db %s: %w", persistPath, err)
		}
	}

	col, err := db.GetOrCreateCollection(collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}
	return &ChromemIndex{db: db, collection: col}, nil
}

func (c *ChromemIndex) Add(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, ch := range chunks {
		docs = append(docs, chromem.Document{
			ID:      ch.ID,
			Content: ch.Content,
			Metadata: map[string]string{
				metaSource:  ch.Source,
				metaPage:    strconv.Itoa(ch.Page),
				metaOrdinal: strconv.Itoa(ch.Ordinal),
			},
		})
	}
	if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("add %d chunks: %w", len(docs), err)
	}
	return nil
}

func (c *ChromemIndex) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.collection.Delete(ctx, nil, nil, ids...)
}

func (c *ChromemIndex) Query(ctx context.Context, text string, n int) ([]Hit, error) {
	// chromem rejects n larger than the collection.
	if count := c.collection.Count(); n > count {
		n = count
	}
	if n <= 0 {
		return nil, nil
	}

	results, err := c.collection.Query(ctx, text, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		page, _ := strconv.Atoi(r.Metadata[metaPage])
		ordinal, _ := strconv.Atoi(r.Metadata[metaOrdinal])
		score := float64(r.Similarity)
		if score < 0 {
			score = 0
		}
		hits = append(hits, Hit{
			Chunk: Chunk{
				ID:      r.ID,
				Source:  r.Metadata[metaSource],
				Page:    page,
				Ordinal: ordinal,
				Content: r.Content,
			},
			Score: score,
		})
	}
	sortHits(hits)
	return hits, nil
}

func (c *ChromemIndex) Count() int {
	return c.collection.Count()
}

// Close is a no-op: persistent collections are written on every Add.
func (c *ChromemIndex) Close() error {
	return nil
}
