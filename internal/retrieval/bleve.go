package retrieval

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve"
	"github.com/blevesearch/bleve/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/mapping"
)

// bleveChunk is the stored document shape.
type bleveChunk struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Page    float64 `json:"page"`
	Ordinal float64 `json:"ordinal"`
}

// BleveIndex is the keyword backend. Raw BM25-style scores are unbounded, so
// they are mapped into [0, 1) with s/(1+s), which keeps the ordering.
type BleveIndex struct {
	index bleve.Index
}

func chunkMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("content", bleve.NewTextFieldMapping())

	source := bleve.NewTextFieldMapping()
	source.Analyzer = keyword.Name
	source.IncludeInAll = false
	doc.AddFieldMappingsAt("source", source)

	for _, name := range []string{"page", "ordinal"} {
		num := bleve.NewNumericFieldMapping()
		num.IncludeInAll = false
		doc.AddFieldMappingsAt(name, num)
	}

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// NewBleveIndex opens the index at path, creating it when missing. An empty path keeps it in memory.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		idx, err := bleve.NewMemOnly(chunkMapping())
		if err != nil {
			return nil, fmt.Errorf("create keyword index: %w", err)
		}
		return &BleveIndex{index: idx}, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr != nil {
			return nil, mkErr
		}
		idx, err = bleve.New(path, chunkMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index %s: %w", path, err)
	}
	return &BleveIndex{index: idx}, nil
}

func (b *BleveIndex) Add(_ context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ID, bleveChunk{
			Content: ch.Content,
			Source:  ch.Source,
			Page:    float64(ch.Page),
			Ordinal: float64(ch.Ordinal),
		}); err != nil {
			return fmt.Errorf("index chunk %s: %w", ch.ID, err)
		}
	}
	return b.index.Batch(batch)
}

func (b *BleveIndex) Delete(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return b.index.Batch(batch)
}

func (b *BleveIndex) Query(ctx context.Context, text string, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField("content")
	req := bleve.NewSearchRequestOptions(q, n, 0, false)
	req.Fields = []string{"content", "source", "page", "ordinal"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		content, _ := h.Fields["content"].(string)
		source, _ := h.Fields["source"].(string)
		page, _ := h.Fields["page"].(float64)
		ordinal, _ := h.Fields["ordinal"].(float64)
		hits = append(hits, Hit{
			Chunk: Chunk{
				ID:      h.ID,
				Source:  source,
				Page:    int(page),
				Ordinal: int(ordinal),
				Content: content,
			},
			Score: h.Score / (1 + h.Score),
		})
	}
	sortHits(hits)
	return hits, nil
}

func (b *BleveIndex) Count() int {
	n, err := b.index.DocCount()
	if err != nil {
		return 0
	}
	return int(n)
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
