package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
)

const renderTimeout = 60 * time.Second

// RenderFetcher loads pages in a headless browser so script-built content is
// present in the returned HTML. The browser starts on first use and stays up
// until Close.
type RenderFetcher struct {
	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	// WaitSelector, when set, is waited on before the page is read.
	WaitSelector string
}

func NewRenderFetcher() *RenderFetcher {
	return &RenderFetcher{WaitSelector: "body"}
}

func (r *RenderFetcher) initBrowser() (context.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browserCtx != nil {
		select {
		case <-r.browserCtx.Done():
			r.cleanup()
		default:
			return r.browserCtx, nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	r.browserCtx, r.browserCancel = chromedp.NewContext(r.allocCtx)

	if err := chromedp.Run(r.browserCtx); err != nil {
		r.cleanup()
		return nil, err
	}
	return r.browserCtx, nil
}

func (r *RenderFetcher) cleanup() {
	if r.browserCancel != nil {
		r.browserCancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	r.browserCtx = nil
	r.allocCtx = nil
}

// Close shuts the browser down.
func (r *RenderFetcher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanup()
	return nil
}

func (r *RenderFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	browserCtx, err := r.initBrowser()
	if err != nil {
		return "", fmt.Errorf("failed to initialize browser: %w", err)
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, renderTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	tasks := chromedp.Tasks{chromedp.Navigate(rawURL)}
	if r.WaitSelector != "" {
		tasks = append(tasks, chromedp.WaitReady(r.WaitSelector, chromedp.ByQuery))
	}
	var html string
	tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))

	if err := chromedp.Run(tabCtx, tasks); err != nil {
		return "", fmt.Errorf("render %s: %w", rawURL, err)
	}
	return html, nil
}
