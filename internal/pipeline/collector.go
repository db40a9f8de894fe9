package pipeline

import (
	"github.com/seoforge/seoforge/internal/helpers"
	"github.com/seoforge/seoforge/models"
)

// Candidate is one discovered source URL in discovery order.
type Candidate struct {
	URL           string
	NormalizedURL string
	Position      int
}

// CollectCandidates gathers candidate URLs from the run inputs: seed
// URLs first, then URLs scanned out of the citations text, then the
// overview text. Candidates are canonicalised, deduplicated first-wins
// on the normalized form, and truncated to maxSources. Unparsable
// URLs are dropped silently; an empty result is the caller's problem.
func CollectCandidates(inputs models.RunInputs, maxSources int) []Candidate {
	raw := make([]string, 0, len(inputs.SeedURLs))
	raw = append(raw, inputs.SeedURLs...)
	raw = append(raw, helpers.ExtractURLs(inputs.CitationsText)...)
	raw = append(raw, helpers.ExtractURLs(inputs.OverviewText)...)

	seen := make(map[string]struct{}, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, u := range raw {
		norm, err := helpers.CanonicalURL(u)
		if err != nil {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, Candidate{URL: u, NormalizedURL: norm, Position: len(out)})
		if maxSources > 0 && len(out) == maxSources {
			break
		}
	}
	return out
}
