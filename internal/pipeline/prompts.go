package pipeline

import (
	"fmt"
	"strings"

	"github.com/seoforge/seoforge/models"
)

// Instructions sent alongside each provider call. Kept as package
// constants so tests can assert routing without string duplication.
const (
	summaryInstruction = "You are an SEO analyst. Summarize article with sections: intent, key topics, strengths, " +
		"missing points, tone, structure, estimated word count, likely target keywords. " +
		"Return concise markdown."

	analysisInstruction = "You are a senior SEO strategist. Given article summaries, produce: " +
		"1) common coverage, 2) common gaps, 3) tone/style pattern, 4) structural pattern, " +
		"5) recommended outranking outline, 6) key entities/phrases to include."

	briefInstruction = "You are an SEO brief strategist. Create an editable markdown content brief using the competitor analysis and source summaries. " +
		"Include these sections with markdown headings: Primary Query, Search Intent, Target Audience, Recommended Title, Meta Description, " +
		"Core Keywords, Questions To Answer, Competitor Gaps To Win, Recommended Outline, Tone And Brand Notes, CTA Notes. " +
		"Keep the brief practical so a human editor can modify it before writing."

	fallbackBriefInstruction = "You are an SEO strategist creating a provisional content brief from only a search query. " +
		"State reasonable assumptions clearly. Return editable markdown with headings: Primary Query, Search Intent, " +
		"Target Audience, Recommended Title, Meta Description, Core Keywords, Questions To Answer, " +
		"Recommended Outline, Tone And Brand Notes, CTA Notes."

	writerInstruction = "You are an expert SEO writer. Write a new, original article that is factual and grounded in the provided content brief. " +
		"Constraints: 1500-2000 words, clear H2/H3 structure, intro, actionable steps, FAQ, conclusion, " +
		"meta title and meta description at top. Return markdown only."
)

// shortContentSummary replaces the LLM summary for sources whose
// extracted text is too thin to analyse.
const shortContentSummary = "Content too short for reliable SEO summary."

// instructionOr returns the user's prompt override when set, the stock
// instruction otherwise.
func instructionOr(override, stock string) string {
	if o := strings.TrimSpace(override); o != "" {
		return o
	}
	return stock
}

// brandContext renders the user's brand settings as a prompt input
// fragment, or "" when no brand is configured.
func brandContext(cust models.Settings) string {
	name := strings.TrimSpace(cust.BrandName)
	if name == "" {
		return ""
	}
	if u := strings.TrimSpace(cust.BrandURL); u != "" {
		return fmt.Sprintf("Brand context: %s (%s). Mention the brand naturally where it fits.", name, u)
	}
	return fmt.Sprintf("Brand context: %s. Mention the brand naturally where it fits.", name)
}
