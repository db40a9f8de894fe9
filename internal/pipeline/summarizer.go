package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/seoforge/seoforge/provider"
)

// minSummaryWords is the floor below which no summary model call is
// worth making.
const minSummaryWords = 80

// extractiveFallbackChars bounds the leading-text fallback summary.
const extractiveFallbackChars = 1200

// SummarizeSource produces a structured SEO summary of one extracted
// source. A provider failure degrades to a deterministic extractive
// summary and reports the degradation reason instead of failing the
// run.
func SummarizeSource(ctx context.Context, prov provider.Provider, srcURL, title, text string) (summary string, degraded *string) {
	if wordCount(text) < minSummaryWords {
		return shortContentSummary, nil
	}
	input := fmt.Sprintf("URL: %s\nTitle: %s\n\n%s", srcURL, title, text)
	out, err := prov.Complete(ctx, summaryInstruction, input, provider.PurposeSummary)
	if err != nil {
		reason := "summarization_degraded: " + err.Error()
		return extractiveSummary(text), &reason
	}
	return strings.TrimSpace(out), nil
}

// extractiveSummary takes the leading sentences of the text, cut at a
// sentence boundary where one lands inside the budget.
func extractiveSummary(text string) string {
	text = strings.TrimSpace(text)
	if len(text) <= extractiveFallbackChars {
		return text
	}
	cut := text[:extractiveFallbackChars]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > extractiveFallbackChars/2 {
		return strings.TrimSpace(cut[:idx+1])
	}
	return strings.TrimSpace(cut)
}
