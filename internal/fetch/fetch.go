package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout = 20 * time.Second
	MaxBodyBytes   = 2 << 20 // 2 MiB of HTML is plenty for article pages

	defaultUserAgent = "seoforge/1.0 (+https://github.com/seoforge/seoforge)"
)

// Result is a fetched page.
type Result struct {
	URL        string
	StatusCode int
	Body       string
}

// WebFetcher retrieves the HTML body of a URL. Implementations carry
// their own per-request timeout.
type WebFetcher interface {
	Fetch(ctx context.Context, url string) (Result, error)
}

// FetcherType selects the fetch strategy.
type FetcherType string

const (
	HTTPFetcherType     FetcherType = "http"
	ChromedpFetcherType FetcherType = "chromedp"
)

// New constructs a WebFetcher. The plain HTTP fetcher is the default;
// chromedp renders JavaScript-heavy pages through a shared headless
// browser and must be Closed on shutdown by the caller.
func New(fetcherType FetcherType, timeout time.Duration) (WebFetcher, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	switch fetcherType {
	case HTTPFetcherType, "":
		return NewHTTPFetcher(timeout), nil
	case ChromedpFetcherType:
		return NewRenderedFetcher(timeout, defaultUserAgent)
	default:
		return nil, fmt.Errorf("unsupported fetcher type: %s", fetcherType)
	}
}

// HTTPFetcher fetches pages with a plain HTTP client, following
// redirects.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: defaultUserAgent,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (Result, error) {
	if strings.TrimSpace(url) == "" {
		return Result{}, fmt.Errorf("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read body of %s: %w", url, err)
	}
	res := Result{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return res, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return res, nil
}
