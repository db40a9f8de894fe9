package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/seoforge/seoforge/models"
)

// GenerateBrief builds a standalone brief outside the run machinery:
// same collect/filter/extract/summarize/analyze stages, but sources
// stay in memory and no run record is written. With no usable sources
// it degrades to the query-only provisional brief.
func (c *Controller) GenerateBrief(ctx context.Context, userID, query string, inputs models.RunInputs) (models.Brief, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Brief{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}

	cust := c.customization(ctx, userID)
	sources := c.gatherSources(ctx, inputs)
	var content string
	var err error
	if len(sources) == 0 {
		content, err = BuildBriefFromQuery(ctx, c.prov, query, cust)
	} else {
		var analysis string
		analysis, err = AnalyzeGaps(ctx, c.prov, query, sources)
		if err == nil {
			content, err = BuildBrief(ctx, c.prov, query, sources, analysis, cust)
		}
	}
	if err != nil {
		return models.Brief{}, err
	}
	return c.repo.CreateBrief(ctx, userID, nil, query, content)
}

// GenerateArticle drafts an article on demand. An empty briefContent
// means quick draft: the provisional brief is built from the query and
// persisted so the article still references an editable brief.
func (c *Controller) GenerateArticle(ctx context.Context, userID, query string, mode models.ArticleMode, briefID *string, briefContent string) (models.Article, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Article{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	cust := c.customization(ctx, userID)
	if briefContent == "" {
		content, err := BuildBriefFromQuery(ctx, c.prov, query, cust)
		if err != nil {
			return models.Article{}, err
		}
		brief, err := c.repo.CreateBrief(ctx, userID, nil, query, content)
		if err != nil {
			return models.Article{}, fmt.Errorf("persist brief: %w", err)
		}
		briefID = &brief.ID
		briefContent = content
	}

	content, err := WriteArticle(ctx, c.prov, query, briefContent, mode, cust)
	if err != nil {
		return models.Article{}, err
	}
	article := models.Article{UserID: userID, Query: query, Mode: mode, BriefID: briefID, Content: content}
	if c.exporter != nil {
		if path, xerr := c.exporter.WriteMarkdown(query, content); xerr != nil {
			c.logger.Printf("article export failed: %v", xerr)
		} else {
			article.ExportPath = &path
		}
	}
	return c.repo.CreateArticle(ctx, article)
}

// gatherSources runs the in-memory collect/filter/extract/summarize
// sequence used by standalone brief generation. Failures drop the
// source; they have no persistent record to carry a reason.
func (c *Controller) gatherSources(ctx context.Context, inputs models.RunInputs) []models.Source {
	candidates := CollectCandidates(inputs, c.cfg.MaxSources)
	rules := BuildFilterRules(c.cfg.BlockedDomains, c.cfg.BlockedPathHints)

	var kept []models.Source
	for _, cand := range candidates {
		if _, matched := MatchFilterRule(rules, cand.NormalizedURL); matched {
			continue
		}
		kept = append(kept, models.Source{URL: cand.URL, NormalizedURL: cand.NormalizedURL, Position: cand.Position})
	}
	if len(kept) == 0 {
		return nil
	}

	ex := &Extractor{Fetcher: c.fetcher, MinWords: c.cfg.MinExtractWords, MaxChars: c.cfg.MaxExtractChars, FetchTimeout: c.cfg.FetchTimeout}
	type outcome struct {
		idx     int
		title   string
		text    string
		summary string
		ok      bool
	}
	results := make(chan outcome, len(kept))
	for i, src := range kept {
		go func(i int, src models.Source) {
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				results <- outcome{idx: i}
				return
			}
			defer func() { <-c.sem }()
			title, text, err := ex.Extract(ctx, src.URL)
			if err != nil {
				results <- outcome{idx: i}
				return
			}
			summary, _ := SummarizeSource(ctx, c.prov, src.URL, title, text)
			results <- outcome{idx: i, title: title, text: text, summary: summary, ok: true}
		}(i, src)
	}
	for range kept {
		out := <-results
		if !out.ok {
			continue
		}
		kept[out.idx].Title = out.title
		kept[out.idx].Text = out.text
		kept[out.idx].Summary = out.summary
		kept[out.idx].Status = models.SourceSummarized
	}

	usable := kept[:0:0]
	for _, src := range kept {
		if src.Status == models.SourceSummarized {
			usable = append(usable, src)
		}
	}
	return usable
}
