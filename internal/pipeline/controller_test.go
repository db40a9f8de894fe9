package pipeline

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/seoforge/seoforge/config"
	"github.com/seoforge/seoforge/internal/fetch"
	"github.com/seoforge/seoforge/models"
	"github.com/seoforge/seoforge/provider"
)

func testPipelineConfig(workers int) config.PipelineConfig {
	return config.PipelineConfig{
		MaxSources:       8,
		MinUsableSources: 1,
		MinExtractWords:  5,
		MaxExtractChars:  120000,
		WorkerLimit:      workers,
		FetchTimeout:     time.Second,
		StageTimeout:     30 * time.Second,
		Fetcher:          "http",
		BlockedDomains:   testDomains,
		BlockedPathHints: testPathHints,
	}
}

func newTestController(repo Repository, prov provider.Provider, fetcher fetch.WebFetcher, cfg config.PipelineConfig) *Controller {
	return NewController(repo, prov, fetcher, nil, cfg, log.New(io.Discard, "", 0))
}

func articlePage(topic string) string {
	return "<html><head><title>" + topic + "</title></head><body><article><p>" +
		strings.Repeat("This guide covers "+topic+" in practical depth with concrete advice. ", 12) +
		"</p></article></body></html>"
}

func startRun(t *testing.T, ctrl *Controller, repo *fakeRepo, query string, mode models.RunMode, inputs models.RunInputs) models.Run {
	t.Helper()
	run, err := ctrl.CreateRun(context.Background(), "user-1", query, mode, inputs)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	ctrl.Execute(context.Background(), run.ID)
	final, err := repo.GetRunByID(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRunByID: %v", err)
	}
	return final
}

func TestRunBlocklistScenario(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/seo-guide": articlePage("seo"),
	}}
	ctrl := newTestController(repo, prov, fetcher, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "best seo tools", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://www.reddit.com/r/seo/top", "https://example.com/seo-guide"},
	})

	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if run.Progress != 100 {
		t.Fatalf("progress = %d", run.Progress)
	}
	if run.BriefID == nil || run.ArticleID == nil {
		t.Fatalf("artifacts missing: brief=%v article=%v", run.BriefID, run.ArticleID)
	}

	sources, _ := repo.ListSources(context.Background(), run.ID)
	if len(sources) != 2 {
		t.Fatalf("source count = %d", len(sources))
	}
	var reddit, guide models.Source
	for _, src := range sources {
		if strings.Contains(src.NormalizedURL, "reddit") {
			reddit = src
		} else {
			guide = src
		}
	}
	if reddit.Status != models.SourceFilteredOut {
		t.Fatalf("reddit status = %s", reddit.Status)
	}
	if reddit.Reason == nil || *reddit.Reason != "blocklist:reddit.com" {
		t.Fatalf("reddit reason = %v", reddit.Reason)
	}
	if guide.Status != models.SourceSummarized {
		t.Fatalf("guide status = %s", guide.Status)
	}
	if guide.Reason != nil {
		t.Fatalf("guide should carry no reason, got %v", *guide.Reason)
	}
	article := repo.articles[*run.ArticleID]
	if article.Mode != models.ArticleFromBrief {
		t.Fatalf("article mode = %s", article.Mode)
	}
	if len(repo.progressViolations) != 0 {
		t.Fatalf("progress violations: %v", repo.progressViolations)
	}
}

func TestRunAllFilteredFallsBackToQuickDraft(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	fetcher := &fakeFetcher{pages: map[string]string{}}
	ctrl := newTestController(repo, prov, fetcher, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "best seo tools", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://reddit.com/r/a", "https://quora.com/q", "https://example.com/shop/tools"},
	})

	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	sources, _ := repo.ListSources(context.Background(), run.ID)
	for _, src := range sources {
		if src.Status != models.SourceFilteredOut {
			t.Fatalf("source %s status = %s", src.URL, src.Status)
		}
	}
	article := repo.articles[*run.ArticleID]
	if article.Mode != models.ArticleQuickDraft {
		t.Fatalf("article mode = %s", article.Mode)
	}
	if len(repo.progressViolations) != 0 {
		t.Fatalf("progress violations: %v", repo.progressViolations)
	}
}

func TestRunAllExtractionFailedFallsBackToQuickDraft(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	fetcher := &fakeFetcher{pages: map[string]string{}} // every fetch 404s
	ctrl := newTestController(repo, prov, fetcher, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "best seo tools", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://a.example.com/1", "https://b.example.com/2"},
	})

	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	sources, _ := repo.ListSources(context.Background(), run.ID)
	for _, src := range sources {
		if src.Status != models.SourceExtractFailed {
			t.Fatalf("source %s status = %s", src.URL, src.Status)
		}
		if src.Reason == nil || !strings.HasPrefix(*src.Reason, "fetch_failed:") {
			t.Fatalf("source %s reason = %v", src.URL, src.Reason)
		}
	}
	if repo.articles[*run.ArticleID].Mode != models.ArticleQuickDraft {
		t.Fatal("expected quick draft article")
	}
}

func TestRunInsufficientSourcesFallsBack(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com/1": articlePage("one"),
	}}
	cfg := testPipelineConfig(2)
	cfg.MinUsableSources = 2
	ctrl := newTestController(repo, prov, fetcher, cfg)

	run := startRun(t, ctrl, repo, "q", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://a.example.com/1", "https://b.example.com/2"},
	})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if repo.articles[*run.ArticleID].Mode != models.ArticleQuickDraft {
		t.Fatal("expected quick draft article")
	}
}

func TestRunDegradedSummariesStillCompletes(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true, errFor: map[provider.Purpose]error{
		provider.PurposeSummary: &provider.CallError{Purpose: provider.PurposeSummary, Err: errors.New("rate limited")},
	}}
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com/1": articlePage("one"),
		"https://b.example.com/2": articlePage("two"),
	}}
	ctrl := newTestController(repo, prov, fetcher, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "q", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://a.example.com/1", "https://b.example.com/2"},
	})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	sources, _ := repo.ListSources(context.Background(), run.ID)
	for _, src := range sources {
		if src.Status != models.SourceSummarized {
			t.Fatalf("source %s status = %s", src.URL, src.Status)
		}
		if src.Reason == nil || !strings.HasPrefix(*src.Reason, "summarization_degraded:") {
			t.Fatalf("source %s reason = %v", src.URL, src.Reason)
		}
	}
	if repo.articles[*run.ArticleID].Mode != models.ArticleFromBrief {
		t.Fatal("degraded summaries still feed the source-backed path")
	}
}

func TestQuickDraftRunSkipsSourceStages(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	ctrl := newTestController(repo, prov, &fakeFetcher{}, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "best seo tools", models.ModeQuickDraft, models.RunInputs{})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if sources, _ := repo.ListSources(context.Background(), run.ID); len(sources) != 0 {
		t.Fatalf("quick draft should touch no sources, got %d", len(sources))
	}
	if run.BriefID == nil {
		t.Fatal("quick draft still produces an editable brief")
	}
	if repo.articles[*run.ArticleID].Mode != models.ArticleQuickDraft {
		t.Fatal("expected quick draft article")
	}
}

func TestQuickDraftWithoutProviderFails(t *testing.T) {
	repo := newFakeRepo()
	ctrl := newTestController(repo, provider.Disabled{}, &fakeFetcher{}, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "q", models.ModeQuickDraft, models.RunInputs{})
	if run.Status != models.RunFailed {
		t.Fatalf("status = %s", run.Status)
	}
	if run.FailureReason == nil || !strings.Contains(*run.FailureReason, "provider") {
		t.Fatalf("reason = %v", run.FailureReason)
	}
}

func TestPastedBriefRun(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	ctrl := newTestController(repo, prov, &fakeFetcher{}, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "q", models.ModePastedBrief, models.RunInputs{PastedBrief: "## My Brief"})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	brief := repo.briefs[*run.BriefID]
	if brief.Content != "## My Brief" {
		t.Fatalf("brief content = %q", brief.Content)
	}
	if repo.articles[*run.ArticleID].Mode != models.ArticlePastedBrief {
		t.Fatal("expected pasted_brief article")
	}
}

func TestCancellationObservedAtStageBoundary(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	ctrl := newTestController(repo, prov, &fakeFetcher{}, testPipelineConfig(2))

	run, err := ctrl.CreateRun(context.Background(), "user-1", "q", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://a.example.com/1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	repo.mu.Lock()
	repo.runs[run.ID].CancelRequested = true
	repo.mu.Unlock()

	ctrl.Execute(context.Background(), run.ID)
	final, _ := repo.GetRunByID(context.Background(), run.ID)
	if final.Status != models.RunCancelled {
		t.Fatalf("status = %s", final.Status)
	}
	if final.ArticleID != nil {
		t.Fatal("cancelled run must not produce artifacts")
	}
}

func TestExtractionConcurrencyBounded(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	gate := make(chan struct{})
	pages := map[string]string{}
	seeds := []string{}
	for _, u := range []string{
		"https://a.example.com/1", "https://b.example.com/2", "https://c.example.com/3",
		"https://d.example.com/4", "https://e.example.com/5", "https://f.example.com/6",
	} {
		pages[u] = articlePage("x")
		seeds = append(seeds, u)
	}
	fetcher := &fakeFetcher{pages: pages, block: gate}
	ctrl := newTestController(repo, prov, fetcher, testPipelineConfig(2))

	go func() {
		// let the first wave saturate the semaphore, then release all
		time.Sleep(50 * time.Millisecond)
		close(gate)
	}()
	run := startRun(t, ctrl, repo, "q", models.ModeSeedURLs, models.RunInputs{SeedURLs: seeds})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if fetcher.maxSeen > 2 {
		t.Fatalf("observed %d concurrent fetches, limit is 2", fetcher.maxSeen)
	}
}

func TestStageTimeoutReleasesWorkerSlots(t *testing.T) {
	repo := newFakeRepo()
	prov := &fakeProvider{enabled: true}
	gate := make(chan struct{})
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://a.example.com/1": articlePage("one"),
		"https://b.example.com/2": articlePage("two"),
	}, block: gate}
	cfg := testPipelineConfig(1)
	cfg.StageTimeout = 100 * time.Millisecond
	ctrl := newTestController(repo, prov, fetcher, cfg)

	run := startRun(t, ctrl, repo, "q", models.ModeSeedURLs, models.RunInputs{
		SeedURLs: []string{"https://a.example.com/1", "https://b.example.com/2"},
	})
	if run.Status != models.RunFailed {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if run.FailureReason == nil || !strings.Contains(*run.FailureReason, "timed out") {
		t.Fatalf("reason = %v", run.FailureReason)
	}

	// the fetch that outlived the stage must still hand its slot back
	// once it finishes, or every later run starves on the shared pool
	close(gate)
	select {
	case ctrl.sem <- struct{}{}:
		<-ctrl.sem
	case <-time.After(2 * time.Second):
		t.Fatal("worker slot never released after stage timeout")
	}
}

func TestRunAppliesUserPromptOverrides(t *testing.T) {
	repo := newFakeRepo()
	repo.settings["user-1"] = models.Settings{
		UserID:               "user-1",
		BrandName:            "Acme Tools",
		WriterPromptOverride: "House style rules.",
	}
	var writerInstr, writerInput string
	prov := &fakeProvider{enabled: true, reply: func(p provider.Purpose, instruction, input string) string {
		if p == provider.PurposeWriting {
			writerInstr = instruction
			writerInput = input
		}
		return string(p) + " output"
	}}
	ctrl := newTestController(repo, prov, &fakeFetcher{}, testPipelineConfig(2))

	run := startRun(t, ctrl, repo, "q", models.ModeQuickDraft, models.RunInputs{})
	if run.Status != models.RunCompleted {
		t.Fatalf("status = %s (reason %v)", run.Status, run.FailureReason)
	}
	if writerInstr != "House style rules." {
		t.Fatalf("writer instruction = %q", writerInstr)
	}
	if !strings.Contains(writerInput, "Acme Tools") {
		t.Fatalf("brand context missing from writer input: %q", writerInput)
	}
}

func TestCreateRunValidation(t *testing.T) {
	repo := newFakeRepo()
	ctrl := newTestController(repo, &fakeProvider{enabled: true}, &fakeFetcher{}, testPipelineConfig(2))
	ctx := context.Background()

	cases := []struct {
		name   string
		query  string
		mode   models.RunMode
		inputs models.RunInputs
	}{
		{"empty query", "  ", models.ModeQuickDraft, models.RunInputs{}},
		{"seed urls missing", "q", models.ModeSeedURLs, models.RunInputs{}},
		{"citations text missing", "q", models.ModeCitationsText, models.RunInputs{}},
		{"pasted brief missing", "q", models.ModePastedBrief, models.RunInputs{}},
		{"unknown mode", "q", models.RunMode("bogus"), models.RunInputs{}},
	}
	for _, tc := range cases {
		if _, err := ctrl.CreateRun(ctx, "user-1", tc.query, tc.mode, tc.inputs); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: err = %v", tc.name, err)
		}
	}

	run, err := ctrl.CreateRun(ctx, "user-1", "q", models.ModeCitationsText, models.RunInputs{
		CitationsText: "see https://a.example.com/1",
	})
	if err != nil {
		t.Fatal(err)
	}
	if run.Status != models.RunPending {
		t.Fatalf("status = %s", run.Status)
	}
	if run.Inputs.CitationsText == "" {
		t.Fatal("inputs snapshot not persisted")
	}
}

func TestExecuteIgnoresTerminalRuns(t *testing.T) {
	repo := newFakeRepo()
	ctrl := newTestController(repo, &fakeProvider{enabled: true}, &fakeFetcher{}, testPipelineConfig(2))
	run, _ := ctrl.CreateRun(context.Background(), "user-1", "q", models.ModeQuickDraft, models.RunInputs{})
	repo.mu.Lock()
	repo.runs[run.ID].Status = models.RunCompleted
	repo.runs[run.ID].Progress = 100
	repo.mu.Unlock()

	ctrl.Execute(context.Background(), run.ID)
	final, _ := repo.GetRunByID(context.Background(), run.ID)
	if final.Status != models.RunCompleted || final.ArticleID != nil {
		t.Fatalf("terminal run mutated: %+v", final)
	}
}
