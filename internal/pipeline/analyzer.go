package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seoforge/seoforge/models"
	"github.com/seoforge/seoforge/provider"
)

// ErrNoSummaries marks the invariant violation of reaching gap
// analysis with nothing to analyse; the controller treats it as fatal.
var ErrNoSummaries = errors.New("gap analysis requires at least one summary")

// AnalyzeGaps combines the per-source summaries, in discovery order,
// into a single competitive analysis. When the provider is down the
// concatenated summaries themselves stand in for the analysis so the
// brief builder still has source-grounded input.
func AnalyzeGaps(ctx context.Context, prov provider.Provider, query string, sources []models.Source) (string, error) {
	joined := joinSummaries(sources)
	if joined == "" {
		return "", ErrNoSummaries
	}
	input := fmt.Sprintf("Query: %s\n\n%s", query, joined)
	out, err := prov.Complete(ctx, analysisInstruction, input, provider.PurposeAnalysis)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return "## Source summaries (analysis unavailable)\n\n" + joined, nil
		}
		return "", fmt.Errorf("gap analysis: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BuildBrief turns the analysis plus summaries into the editable
// markdown content brief. The user's brief prompt override replaces
// the stock instruction; brand settings extend the input.
func BuildBrief(ctx context.Context, prov provider.Provider, query string, sources []models.Source, analysis string, cust models.Settings) (string, error) {
	joined := joinSummaries(sources)
	input := fmt.Sprintf("Primary query: %s\n\nCompetitor summaries:\n%s\n\nSEO analysis:\n%s", query, joined, analysis)
	if bc := brandContext(cust); bc != "" {
		input += "\n\n" + bc
	}
	out, err := prov.Complete(ctx, instructionOr(cust.BriefPromptOverride, briefInstruction), input, provider.PurposeBrief)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return stubBrief(query, analysis), nil
		}
		return "", fmt.Errorf("brief build: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BuildBriefFromQuery produces the provisional query-only brief used by
// quick drafts and by runs whose source stages came up empty.
func BuildBriefFromQuery(ctx context.Context, prov provider.Provider, query string, cust models.Settings) (string, error) {
	input := "Primary query: " + query
	if bc := brandContext(cust); bc != "" {
		input += "\n\n" + bc
	}
	out, err := prov.Complete(ctx, instructionOr(cust.BriefPromptOverride, fallbackBriefInstruction), input, provider.PurposeBrief)
	if err != nil {
		if errors.Is(err, provider.ErrUnavailable) {
			return stubBrief(query, ""), nil
		}
		return "", fmt.Errorf("brief build: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func joinSummaries(sources []models.Source) string {
	parts := make([]string, 0, len(sources))
	for _, src := range sources {
		if src.Status != models.SourceSummarized || strings.TrimSpace(src.Summary) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("Source: %s\n%s", src.URL, src.Summary))
	}
	return strings.Join(parts, "\n\n")
}

// stubBrief is the deterministic offline brief skeleton.
func stubBrief(query, analysis string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Content Brief: %s\n\n", query)
	b.WriteString("## Primary Query\n" + query + "\n\n")
	b.WriteString("## Search Intent\nTBD: classify intent (informational, commercial, transactional).\n\n")
	b.WriteString("## Recommended Outline\n- Introduction\n- Key subtopics\n- FAQ\n- Conclusion\n\n")
	if analysis != "" {
		b.WriteString("## Competitor Analysis\n" + analysis + "\n")
	}
	return strings.TrimSpace(b.String())
}
