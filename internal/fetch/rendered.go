package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// RenderedFetcher owns a long-lived headless Chrome context so pages
// that assemble their content client-side still yield usable HTML.
// Construct once; call Fetch per URL; Close on shutdown.
type RenderedFetcher struct {
	allocCtx  context.Context
	cancelAll context.CancelFunc
	brCtx     context.Context
	cancelBr  context.CancelFunc

	timeout time.Duration
}

func NewRenderedFetcher(timeout time.Duration, userAgent string) (*RenderedFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(userAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	bctx, cancelBr := chromedp.NewContext(actx)

	return &RenderedFetcher{
		allocCtx:  actx,
		cancelAll: cancelAlloc,
		brCtx:     bctx,
		cancelBr:  cancelBr,
		timeout:   timeout,
	}, nil
}

// Close tears down Chrome resources.
func (f *RenderedFetcher) Close() {
	if f.cancelBr != nil {
		f.cancelBr()
	}
	if f.cancelAll != nil {
		f.cancelAll()
	}
}

func (f *RenderedFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if strings.TrimSpace(url) == "" {
		return Result{}, fmt.Errorf("empty url")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	tctx, cancel := context.WithTimeout(f.brCtx, f.timeout)
	defer cancel()

	var html string
	err := chromedp.Run(tctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, fmt.Errorf("render %s: %w", url, err)
	}
	// chromedp exposes no HTTP status; a rendered body implies 200.
	return Result{URL: url, StatusCode: 200, Body: html}, nil
}
