// Package ingest loads documents from disk or the web, splits them into chunks
// and registers them with the index and the catalog.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	KindPDF  = "pdf"
	KindText = "text"
	KindWeb  = "web"
)

var (
	ErrUnsupported = errors.New("unsupported document type")
	ErrNoContent   = errors.New("document has no extractable text")
)

var kinds = map[string]string{
	".pdf":      KindPDF,
	".txt":      KindText,
	".md":       KindText,
	".markdown": KindText,
}

// Catalog is the document registry the ingester writes to. *store.Catalog
// implements it.
type Catalog interface {
	retrieval.Catalog
	ChunkIDs(ctx context.Context, source string) ([]string, error)
}

// page is one unit of extracted text. Number is 0 for sources without pages.
type page struct {
	Number int
	Text   string
}

type Ingester struct {
	index    retrieval.Index
	catalog  Catalog
	splitter textsplitter.TextSplitter
	web      *WebLoader
	logger   *observability.Logger
	now      func() time.Time
}

type Option func(*Ingester)

func WithChunking(size, overlap int) Option {
	return func(in *Ingester) {
		if size <= 0 {
			return
		}
		if overlap < 0 || overlap >= size {
			overlap = 0
		}
		in.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
	}
}

func WithWebLoader(w *WebLoader) Option {
	return func(in *Ingester) { in.web = w }
}

func WithLogger(l *observability.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

func NewIngester(index retrieval.Index, catalog Catalog, opts ...Option) *Ingester {
	in := &Ingester{
		index:   index,
		catalog: catalog,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(DefaultChunkSize),
			textsplitter.WithChunkOverlap(DefaultChunkOverlap),
		),
		logger: observability.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.web == nil {
		in.web = NewWebLoader(NewHTTPFetcher())
	}
	return in
}

// Supported reports whether path has an extension AddFile can read.
func Supported(path string) bool {
	_, ok := kinds[strings.ToLower(filepath.Ext(path))]
	return ok
}

// AddFile ingests one file under its base name. Re-adding a file replaces the
// chunks it had before.
func (in *Ingester) AddFile(ctx context.Context, path string) (retrieval.DocumentInfo, error) {
	kind, ok := kinds[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return retrieval.DocumentInfo{}, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	var (
		pages []page
		err   error
	)
	if kind == KindPDF {
		pages, err = readPDF(ctx, path)
	} else {
		pages, err = readText(path)
	}
	if err != nil {
		return retrieval.DocumentInfo{}, fmt.Errorf("read %s: %w", path, err)
	}
	return in.store(ctx, filepath.Base(path), kind, pages)
}

// AddDirectory ingests every supported file below dir, in lexical order. A file
// that fails does not stop the walk; all failures are returned together.
func (in *Ingester) AddDirectory(ctx context.Context, dir string) ([]retrieval.DocumentInfo, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && Supported(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	var (
		docs []retrieval.DocumentInfo
		errs error
	)
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return docs, multierr.Append(errs, err)
		}
		doc, err := in.AddFile(ctx, p)
		if err != nil {
			in.logger.Zap().Warn("skipping document", zap.String("path", p), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, errs
}

// AddURL fetches a web page, extracts its readable text and ingests it under
// the URL.
func (in *Ingester) AddURL(ctx context.Context, rawURL string) (retrieval.DocumentInfo, error) {
	article, err := in.web.Load(ctx, rawURL)
	if err != nil {
		return retrieval.DocumentInfo{}, err
	}
	text := article.Text
	if article.Title != "" {
		text = article.Title + "\n\n" + text
	}
	return in.store(ctx, rawURL, KindWeb, []page{{Text: text}})
}

func (in *Ingester) store(ctx context.Context, name, kind string, pages []page) (retrieval.DocumentInfo, error) {
	chunks, err := in.split(name, pages)
	if err != nil {
		return retrieval.DocumentInfo{}, err
	}
	if len(chunks) == 0 {
		return retrieval.DocumentInfo{}, fmt.Errorf("%w: %s", ErrNoContent, name)
	}

	stale, err := in.catalog.ChunkIDs(ctx, name)
	if err != nil {
		return retrieval.DocumentInfo{}, fmt.Errorf("look up previous chunks of %s: %w", name, err)
	}
	if len(stale) > 0 {
		if err := in.index.Delete(ctx, stale...); err != nil {
			return retrieval.DocumentInfo{}, fmt.Errorf("remove previous chunks of %s: %w", name, err)
		}
	}
	if err := in.index.Add(ctx, chunks); err != nil {
		return retrieval.DocumentInfo{}, fmt.Errorf("index %s: %w", name, err)
	}

	doc := retrieval.DocumentInfo{
		Filename:   name,
		ChunkCount: len(chunks),
		Available:  true,
		Kind:       kind,
		AddedAt:    in.now().UTC(),
	}
	if err := in.catalog.Register(ctx, doc, chunks); err != nil {
		return retrieval.DocumentInfo{}, fmt.Errorf("register %s: %w", name, err)
	}
	in.logger.LogIngest(name, kind, len(chunks))
	return doc, nil
}

func (in *Ingester) split(name string, pages []page) ([]retrieval.Chunk, error) {
	var chunks []retrieval.Chunk
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		parts, err := in.splitter.SplitText(p.Text)
		if err != nil {
			return nil, fmt.Errorf("split %s: %w", name, err)
		}
		for _, part := range parts {
			if strings.TrimSpace(part) == "" {
				continue
			}
			n := len(chunks)
			chunks = append(chunks, retrieval.Chunk{
				ID:      fmt.Sprintf("%s#%04d", name, n),
				Source:  name,
				Page:    p.Number,
				Ordinal: n,
				Content: part,
			})
		}
	}
	return chunks, nil
}

func readText(path string) ([]page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []page{{Text: string(data)}}, nil
}

func readPDF(ctx context.Context, path string) ([]page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	reader, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}
	var pages []page
	for n := 1; n <= reader.NumPage(); n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := reader.Page(n)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", n, err)
		}
		pages = append(pages, page{Number: n, Text: text})
	}
	return pages, nil
}
