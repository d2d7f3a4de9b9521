package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rahul/workdesk/internal/retrieval"
	"github.com/rahul/workdesk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIngester(t *testing.T, opts ...Option) (*Ingester, *retrieval.BleveIndex, *store.Catalog) {
	t.Helper()
	index, err := retrieval.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	catalog, err := store.NewCatalog(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { catalog.Close() })
	return NewIngester(index, catalog, opts...), index, catalog
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Paragraph %d covers the onboarding policy.", i)
	}
	return strings.Join(parts, "\n\n")
}

func TestAddFile_Text(t *testing.T) {
	ctx := context.Background()
	in, index, catalog := newIngester(t)
	path := writeFile(t, t.TempDir(), "welcome.md", "Welcome to the team. Collect your laptop on day one.")

	doc, err := in.AddFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, "welcome.md", doc.Filename)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, KindText, doc.Kind)
	assert.True(t, doc.Available)
	assert.Equal(t, 1, index.Count())

	chunks, err := catalog.Chunks(ctx, "welcome.md")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "welcome.md#0000", chunks[0].ID)
	assert.Equal(t, 0, chunks[0].Page)

	hits, err := index.Query(ctx, "laptop", 4)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "welcome.md", hits[0].Chunk.Source)
}

func TestAddFile_SplitsAndReplaces(t *testing.T) {
	ctx := context.Background()
	in, index, catalog := newIngester(t, WithChunking(60, 0))
	dir := t.TempDir()

	path := writeFile(t, dir, "policy.txt", paragraphs(6))
	doc, err := in.AddFile(ctx, path)
	require.NoError(t, err)
	require.Greater(t, doc.ChunkCount, 1)
	assert.Equal(t, doc.ChunkCount, index.Count())

	chunks, err := catalog.Chunks(ctx, "policy.txt")
	require.NoError(t, err)
	for i, ch := range chunks {
		assert.Equal(t, fmt.Sprintf("policy.txt#%04d", i), ch.ID)
		assert.Equal(t, i, ch.Ordinal)
		assert.LessOrEqual(t, len([]rune(ch.Content)), 60)
	}

	// Shrinking the file drops the chunks that no longer exist.
	writeFile(t, dir, "policy.txt", "Short now.")
	doc, err = in.AddFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.ChunkCount)
	assert.Equal(t, 1, index.Count())

	ids, err := catalog.ChunkIDs(ctx, "policy.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"policy.txt#0000"}, ids)
}

func TestAddFile_Rejects(t *testing.T) {
	ctx := context.Background()
	in, index, _ := newIngester(t)
	dir := t.TempDir()

	_, err := in.AddFile(ctx, writeFile(t, dir, "sheet.xlsx", "x"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = in.AddFile(ctx, writeFile(t, dir, "blank.txt", "  \n\n "))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = in.AddFile(ctx, writeFile(t, dir, "broken.pdf", "not really a pdf"))
	assert.Error(t, err)

	_, err = in.AddFile(ctx, filepath.Join(dir, "missing.md"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	assert.Equal(t, 0, index.Count())
}

func TestAddDirectory(t *testing.T) {
	ctx := context.Background()
	in, _, catalog := newIngester(t)
	dir := t.TempDir()
	writeFile(t, dir, "b.md", "Benefits overview")
	writeFile(t, dir, "nested/a.txt", "Access requests")
	writeFile(t, dir, "empty.txt", "")
	writeFile(t, dir, "image.png", "binary")

	docs, err := in.AddDirectory(ctx, dir)
	require.Error(t, err, "the empty file is reported")
	assert.ErrorIs(t, err, ErrNoContent)
	require.Len(t, docs, 2)
	assert.Equal(t, "b.md", docs[0].Filename)
	assert.Equal(t, "a.txt", docs[1].Filename)

	listed, err := catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

const articleHTML = `<!DOCTYPE html>
<html><head><title>Remote Work Policy</title></head>
<body>
<nav>Home | About | Careers</nav>
<article>
<h1>Remote Work Policy</h1>
<p>Employees may work remotely up to three days per week after completing their first month with the company.</p>
<p>Remote days must be agreed with the team lead in advance and recorded in the shared team calendar every Friday.</p>
<p>Equipment for the home office is reimbursed up to the yearly budget described in the benefits handbook.</p>
<p>Security rules still apply at home, including screen locking, encrypted disks, and the use of the corporate VPN.</p>
<script>alert("tracking")</script>
</article>
</body></html>`

func TestWebLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policy" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, defaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, articleHTML)
	}))
	defer srv.Close()

	loader := NewWebLoader(NewHTTPFetcher())
	article, err := loader.Load(context.Background(), srv.URL+"/policy")
	require.NoError(t, err)
	assert.Equal(t, "Remote Work Policy", article.Title)
	assert.Contains(t, article.Text, "three days per week")
	assert.NotContains(t, article.Text, "<p>")
	assert.NotContains(t, article.Text, "tracking")

	_, err = loader.Load(context.Background(), srv.URL+"/missing")
	assert.EqualError(t, err, "failed to fetch URL: status code 404")

	_, err = loader.Load(context.Background(), "not a url")
	assert.Error(t, err)
}

type staticFetcher string

func (s staticFetcher) Fetch(context.Context, string) (string, error) { return string(s), nil }

func TestAddURL(t *testing.T) {
	ctx := context.Background()
	in, index, catalog := newIngester(t, WithWebLoader(NewWebLoader(staticFetcher(articleHTML))))

	doc, err := in.AddURL(ctx, "https://intranet.example.com/policy")
	require.NoError(t, err)
	assert.Equal(t, "https://intranet.example.com/policy", doc.Filename)
	assert.Equal(t, KindWeb, doc.Kind)
	assert.Equal(t, doc.ChunkCount, index.Count())

	chunks, err := catalog.Chunks(ctx, doc.Filename)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "Remote Work Policy"))
}
