package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxArticleChars  = 50000
	maxPageBytes     = 10 << 20
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (string, error)
}

// HTTPFetcher fetches pages with a plain GET.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: 30 * time.Second},
		UserAgent: defaultUserAgent,
	}
}

func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", h.UserAgent)

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to fetch URL: status code %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	return string(body), nil
}

// Article is the readable part of a web page.
type Article struct {
	URL     string
	Title   string
	Excerpt string
	Text    string
}

// WebLoader turns pages into sanitized plain text.
type WebLoader struct {
	fetcher Fetcher
	policy  *bluemonday.Policy
}

func NewWebLoader(f Fetcher) *WebLoader {
	return &WebLoader{fetcher: f, policy: bluemonday.StrictPolicy()}
}

func (w *WebLoader) Load(ctx context.Context, rawURL string) (Article, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Article{}, fmt.Errorf("invalid URL %q", rawURL)
	}

	html, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return Article{}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		return Article{}, fmt.Errorf("failed to parse article: %w", err)
	}

	text := strings.TrimSpace(w.policy.Sanitize(article.TextContent))
	if len(text) > maxArticleChars {
		text = strings.ToValidUTF8(text[:maxArticleChars], "")
	}
	return Article{
		URL:     rawURL,
		Title:   article.Title,
		Excerpt: article.Excerpt,
		Text:    text,
	}, nil
}
