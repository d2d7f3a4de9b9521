// Package retrieval answers document questions from an Index and a Catalog of
// ingested sources.
package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rahul/workdesk/internal/observability"
)

const (
	DefaultK              = 4
	DefaultScoreThreshold = 0.3
	DefaultDocumentK      = 3
	DefaultMaxSourceChunk = 10

	previewLength = 200
)

// SearchHit is one ranked chunk in a search result.
type SearchHit struct {
	Rank            int     `json:"rank"`
	Content         string  `json:"content"`
	SourceFile      string  `json:"source_file"`
	Page            int     `json:"page,omitempty"`
	ChunkID         string  `json:"chunk_id"`
	SimilarityScore float64 `json:"similarity_score"`
	ContentPreview  string  `json:"content_preview"`
}

// SearchParameters echoes the knobs a search ran with.
type SearchParameters struct {
	K              int     `json:"k"`
	ScoreThreshold float64 `json:"score_threshold"`
}

// SearchResult is returned by every search operation. Failures set Success to
// false and Error; they are never returned as Go errors.
type SearchResult struct {
	Success      bool              `json:"success"`
	Query        string            `json:"query"`
	SourceFile   string            `json:"source_file,omitempty"`
	TotalResults int               `json:"total_results"`
	Results      []SearchHit       `json:"results"`
	Summary      string            `json:"summary,omitempty"`
	Parameters   *SearchParameters `json:"search_parameters,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// QuerySummary is the per-query line of a multi-query search.
type QuerySummary struct {
	Query        string `json:"query"`
	ResultsFound int    `json:"results_found"`
	Summary      string `json:"summary"`
}

type MultiSearchResult struct {
	Success            bool           `json:"success"`
	Queries            []string       `json:"queries"`
	TotalUniqueResults int            `json:"total_unique_results"`
	Results            []SearchHit    `json:"results"`
	SearchSummaries    []QuerySummary `json:"search_summaries"`
	Error              string         `json:"error,omitempty"`
}

type DocumentList struct {
	Success        bool           `json:"success"`
	TotalDocuments int            `json:"total_documents"`
	Documents      []DocumentInfo `json:"documents"`
	IndexedChunks  int            `json:"indexed_chunks"`
	Error          string         `json:"error,omitempty"`
}

type SourceChunk struct {
	ChunkID string `json:"chunk_id"`
	Content string `json:"content"`
	Page    int    `json:"page,omitempty"`
}

type SourceContent struct {
	Success     bool          `json:"success"`
	SourceFile  string        `json:"source_file"`
	TotalChunks int           `json:"total_chunks"`
	Content     []SourceChunk `json:"content"`
	Error       string        `json:"error,omitempty"`
}

// Requests routed to the Retriever by the orchestrator. Action returns the
// action name the request belongs to.

type SearchRequest struct {
	Query          string  `mapstructure:"query" json:"query"`
	K              int     `mapstructure:"k" json:"k"`
	ScoreThreshold float64 `mapstructure:"score_threshold" json:"score_threshold,omitempty"`
}

func (SearchRequest) Action() string { return "search" }

type DocumentSearchRequest struct {
	Query      string `mapstructure:"query" json:"query"`
	SourceFile string `mapstructure:"source_file" json:"source_file"`
	K          int    `mapstructure:"k" json:"k"`
}

func (DocumentSearchRequest) Action() string { return "search_by_document" }

type DocumentListRequest struct{}

func (DocumentListRequest) Action() string { return "get_documents" }

// Retriever is the search capability provider.
type Retriever struct {
	index          Index
	catalog        Catalog
	defaultK       int
	scoreThreshold float64
	logger         *observability.Logger
	metrics        *observability.Metrics
}

type Option func(*Retriever)

func WithDefaults(k int, threshold float64) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.defaultK = k
		}
		r.scoreThreshold = threshold
	}
}

func WithLogger(l *observability.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(r *Retriever) { r.metrics = m }
}

func NewRetriever(index Index, catalog Catalog, opts ...Option) *Retriever {
	r := &Retriever{
		index:          index,
		catalog:        catalog,
		defaultK:       DefaultK,
		scoreThreshold: DefaultScoreThreshold,
		logger:         observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DefaultK is the k used when a request leaves it unset.
func (r *Retriever) DefaultK() int { return r.defaultK }

// ScoreThreshold is the threshold used by Run for plain searches.
func (r *Retriever) ScoreThreshold() float64 { return r.scoreThreshold }

// Search returns up to k chunks scoring at least threshold, best first.
func (r *Retriever) Search(ctx context.Context, query string, k int, threshold float64) *SearchResult {
	if k <= 0 {
		k = r.defaultK
	}
	hits, err := r.index.Query(ctx, query, k)
	if err != nil {
		return &SearchResult{
			Success: false,
			Query:   query,
			Results: []SearchHit{},
			Error:   fmt.Sprintf("Search failed: %v", err),
		}
	}
	sortHits(hits)

	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= threshold {
			kept = append(kept, h)
		}
	}
	results := toSearchHits(kept)

	r.logger.LogSearch(ctx, query, len(results))
	r.metrics.ObserveSearch(len(results))
	return &SearchResult{
		Success:      true,
		Query:        query,
		TotalResults: len(results),
		Results:      results,
		Summary:      searchSummary(query, results, ""),
		Parameters:   &SearchParameters{K: k, ScoreThreshold: threshold},
	}
}

// SearchByDocument searches only within source, compared case-insensitively.
// It over-fetches 3k candidates, drops those below the score threshold and may
// return fewer than k.
func (r *Retriever) SearchByDocument(ctx context.Context, query, source string, k int) *SearchResult {
	if k <= 0 {
		k = DefaultDocumentK
	}
	hits, err := r.index.Query(ctx, query, k*3)
	if err != nil {
		return &SearchResult{
			Success:    false,
			Query:      query,
			SourceFile: source,
			Results:    []SearchHit{},
			Error:      fmt.Sprintf("Document search failed: %v", err),
		}
	}
	sortHits(hits)

	var kept []Hit
	for _, h := range hits {
		if h.Score < r.scoreThreshold {
			continue
		}
		if strings.EqualFold(h.Chunk.Source, source) {
			kept = append(kept, h)
			if len(kept) == k {
				break
			}
		}
	}
	results := toSearchHits(kept)

	r.logger.LogSearch(ctx, query, len(results))
	r.metrics.ObserveSearch(len(results))
	return &SearchResult{
		Success:      true,
		Query:        query,
		SourceFile:   source,
		TotalResults: len(results),
		Results:      results,
		Summary:      searchSummary(query, results, source),
		Parameters:   &SearchParameters{K: k, ScoreThreshold: r.scoreThreshold},
	}
}

// SearchMultipleQueries runs Search per query and merges the results, keeping the
// first occurrence of each chunk and re-ranking by similarity.
func (r *Retriever) SearchMultipleQueries(ctx context.Context, queries []string, k int) *MultiSearchResult {
	out := &MultiSearchResult{
		Success:         true,
		Queries:         queries,
		Results:         []SearchHit{},
		SearchSummaries: []QuerySummary{},
	}
	seen := make(map[string]bool)
	for _, q := range queries {
		res := r.Search(ctx, q, k, r.scoreThreshold)
		if !res.Success {
			out.SearchSummaries = append(out.SearchSummaries, QuerySummary{Query: q, Summary: res.Error})
			continue
		}
		for _, hit := range res.Results {
			if seen[hit.ChunkID] {
				continue
			}
			seen[hit.ChunkID] = true
			out.Results = append(out.Results, hit)
		}
		out.SearchSummaries = append(out.SearchSummaries, QuerySummary{
			Query:        q,
			ResultsFound: res.TotalResults,
			Summary:      res.Summary,
		})
	}

	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].SimilarityScore > out.Results[j].SimilarityScore
	})
	for i := range out.Results {
		out.Results[i].Rank = i + 1
	}
	out.TotalUniqueResults = len(out.Results)
	return out
}

// GetDocumentList reports the ingested documents.
func (r *Retriever) GetDocumentList(ctx context.Context) *DocumentList {
	docs, err := r.catalog.List(ctx)
	if err != nil {
		return &DocumentList{
			Success:   false,
			Documents: []DocumentInfo{},
			Error:     fmt.Sprintf("Failed to list documents: %v", err),
		}
	}
	if docs == nil {
		docs = []DocumentInfo{}
	}
	return &DocumentList{
		Success:        true,
		TotalDocuments: len(docs),
		Documents:      docs,
		IndexedChunks:  r.index.Count(),
	}
}

// GetContentBySource returns up to maxChunks chunks of one document in reading order.
func (r *Retriever) GetContentBySource(ctx context.Context, source string, maxChunks int) *SourceContent {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxSourceChunk
	}
	chunks, err := r.catalog.Chunks(ctx, source)
	if err != nil {
		return &SourceContent{
			Success:    false,
			SourceFile: source,
			Content:    []SourceChunk{},
			Error:      fmt.Sprintf("Failed to get content: %v", err),
		}
	}
	if len(chunks) > maxChunks {
		chunks = chunks[:maxChunks]
	}
	out := make([]SourceChunk, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, SourceChunk{ChunkID: ch.ID, Content: ch.Content, Page: ch.Page})
	}
	return &SourceContent{
		Success:     true,
		SourceFile:  source,
		TotalChunks: len(out),
		Content:     out,
	}
}

func toSearchHits(hits []Hit) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for i, h := range hits {
		out = append(out, SearchHit{
			Rank:            i + 1,
			Content:         h.Chunk.Content,
			SourceFile:      h.Chunk.Source,
			Page:            h.Chunk.Page,
			ChunkID:         h.Chunk.ID,
			SimilarityScore: roundScore(h.Score),
			ContentPreview:  Preview(h.Chunk.Content),
		})
	}
	return out
}

func roundScore(s float64) float64 {
	return math.Round(s*1e4) / 1e4
}

// Preview returns the first 200 characters of content, with "..." appended when cut.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength]) + "..."
}

func searchSummary(query string, results []SearchHit, source string) string {
	if len(results) == 0 {
		if source != "" {
			return fmt.Sprintf("No relevant results found for query: '%s' in document: %s", query, source)
		}
		return fmt.Sprintf("No relevant results found for query: '%s'", query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d relevant results for query: '%s'.", len(results), query)
	if source != "" {
		fmt.Fprintf(&b, " from document: %s.", source)
	} else {
		var sources []string
		seen := make(map[string]bool)
		for _, r := range results {
			if !seen[r.SourceFile] {
				seen[r.SourceFile] = true
				sources = append(sources, r.SourceFile)
			}
		}
		fmt.Fprintf(&b, " across %d document(s): %s.", len(sources), strings.Join(sources, ", "))
	}

	lo, hi := results[0].SimilarityScore, results[0].SimilarityScore
	for _, r := range results[1:] {
		lo = math.Min(lo, r.SimilarityScore)
		hi = math.Max(hi, r.SimilarityScore)
	}
	fmt.Fprintf(&b, " Similarity scores range from %.3f to %.3f.", lo, hi)
	return b.String()
}
