package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/seoforge/seoforge/provider"
)

func TestSummarizeShortContent(t *testing.T) {
	prov := &fakeProvider{enabled: true}
	summary, degraded := SummarizeSource(context.Background(), prov, "https://example.com/a", "Title", "too few words")
	if summary != shortContentSummary {
		t.Fatalf("summary = %q", summary)
	}
	if degraded != nil {
		t.Fatalf("short content is not a degradation: %v", *degraded)
	}
	if len(prov.calls) != 0 {
		t.Fatal("no provider call expected for short content")
	}
}

func TestSummarizeSuccess(t *testing.T) {
	prov := &fakeProvider{enabled: true, reply: func(p provider.Purpose, instruction, input string) string {
		if p != provider.PurposeSummary {
			t.Errorf("purpose = %s", p)
		}
		if !strings.Contains(input, "URL: https://example.com/a") {
			t.Errorf("input missing url: %q", input)
		}
		return "  ## Intent\ninformational  "
	}}
	text := strings.Repeat("lengthy analysis of the subject matter at hand ", 30)
	summary, degraded := SummarizeSource(context.Background(), prov, "https://example.com/a", "Title", text)
	if summary != "## Intent\ninformational" {
		t.Fatalf("summary = %q", summary)
	}
	if degraded != nil {
		t.Fatalf("unexpected degradation: %v", *degraded)
	}
}

func TestSummarizeDegradesOnProviderError(t *testing.T) {
	prov := &fakeProvider{enabled: true, err: &provider.CallError{Purpose: provider.PurposeSummary, Err: errors.New("rate limited")}}
	text := strings.Repeat("every sentence here carries a few words of content. ", 60)
	summary, degraded := SummarizeSource(context.Background(), prov, "https://example.com/a", "Title", text)
	if degraded == nil {
		t.Fatal("expected degradation reason")
	}
	if !strings.HasPrefix(*degraded, "summarization_degraded:") {
		t.Fatalf("reason = %q", *degraded)
	}
	if summary == "" || len(summary) > extractiveFallbackChars {
		t.Fatalf("fallback summary length %d", len(summary))
	}
	// the extractive fallback cuts at a sentence boundary
	if !strings.HasSuffix(summary, ".") {
		t.Fatalf("fallback should end at a sentence: %q", summary[len(summary)-20:])
	}
}

func TestSummarizeDegradesWhenUnavailable(t *testing.T) {
	text := strings.Repeat("words that fill out the body of an article paragraph. ", 40)
	summary, degraded := SummarizeSource(context.Background(), provider.Disabled{}, "https://example.com/a", "T", text)
	if degraded == nil {
		t.Fatal("expected degradation reason")
	}
	if summary == "" {
		t.Fatal("expected extractive summary")
	}
}

func TestExtractiveSummaryShortInputUnchanged(t *testing.T) {
	in := "One sentence only."
	if got := extractiveSummary(in); got != in {
		t.Fatalf("got %q", got)
	}
}
