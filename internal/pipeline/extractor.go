package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/seoforge/seoforge/internal/fetch"
)

// Extractor turns a URL into readable article text. Readability is the
// primary strategy; when it errors or yields too little, a plain DOM
// text sweep via goquery is tried before giving up.
type Extractor struct {
	Fetcher      fetch.WebFetcher
	MinWords     int
	MaxChars     int
	FetchTimeout time.Duration
}

// Extract fetches the page and returns its title and body text. The
// error reason is stable enough to store on the source record.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (title, text string, err error) {
	fctx := ctx
	if e.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, e.FetchTimeout)
		defer cancel()
	}
	res, err := e.Fetcher.Fetch(fctx, rawURL)
	if err != nil {
		return "", "", fmt.Errorf("fetch_failed: %w", err)
	}

	title, text = e.extractReadable(res)
	if wordCount(text) < e.MinWords {
		fbTitle, fbText := extractFallback(res.Body)
		if wordCount(fbText) > wordCount(text) {
			text = fbText
			if title == "" {
				title = fbTitle
			}
		}
	}
	if wordCount(text) < e.MinWords {
		return title, "", fmt.Errorf("extract_too_short: %d words below minimum %d", wordCount(text), e.MinWords)
	}
	if e.MaxChars > 0 && len(text) > e.MaxChars {
		cut := e.MaxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return title, text, nil
}

func (e *Extractor) extractReadable(res fetch.Result) (string, string) {
	pageURL, err := url.Parse(res.URL)
	if err != nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(res.Body), pageURL)
	if err != nil {
		return "", ""
	}
	return strings.TrimSpace(article.Title), collapseLines(article.TextContent)
}

// extractFallback strips non-content nodes and joins the visible text,
// for pages whose markup defeats readability.
func extractFallback(html string) (string, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", ""
	}
	doc.Find("script, style, noscript, svg, iframe").Remove()
	title := strings.TrimSpace(doc.Find("title").First().Text())
	body := doc.Find("body")
	if body.Length() == 0 {
		return title, collapseLines(doc.Text())
	}
	return title, collapseLines(body.Text())
}

// collapseLines trims every line and drops the empty ones, so DOM text
// dumps read as paragraphs instead of whitespace soup.
func collapseLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
