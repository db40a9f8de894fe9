package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/seoforge/seoforge/internal/fetch"
	"github.com/seoforge/seoforge/models"
	"github.com/seoforge/seoforge/provider"
)

// fakeProvider scripts LLM behavior per purpose.
type fakeProvider struct {
	enabled bool
	err     error
	errFor  map[provider.Purpose]error
	reply   func(purpose provider.Purpose, instruction, input string) string

	mu    sync.Mutex
	calls []provider.Purpose
}

func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) Complete(ctx context.Context, instruction, input string, purpose provider.Purpose) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, purpose)
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if err, ok := f.errFor[purpose]; ok && err != nil {
		return "", err
	}
	if f.reply != nil {
		return f.reply(purpose, instruction, input), nil
	}
	return fmt.Sprintf("%s output", purpose), nil
}

// fakeFetcher serves canned bodies by URL and counts concurrent
// in-flight fetches.
type fakeFetcher struct {
	pages map[string]string // url -> body; missing url errors
	block chan struct{}     // optional gate to hold fetches open

	mu      sync.Mutex
	inUse   int
	maxSeen int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	f.mu.Lock()
	f.inUse++
	if f.inUse > f.maxSeen {
		f.maxSeen = f.inUse
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inUse--
		f.mu.Unlock()
	}()
	if f.block != nil {
		<-f.block
	}
	body, ok := f.pages[url]
	if !ok {
		return fetch.Result{}, fmt.Errorf("fetch %s: status 404", url)
	}
	return fetch.Result{URL: url, StatusCode: 200, Body: body}, nil
}

// fakeRepo is an in-memory Repository that also asserts progress
// monotonicity on every update.
type fakeRepo struct {
	mu       sync.Mutex
	nextID   int
	runs     map[string]*models.Run
	sources  map[string][]*models.Source
	briefs   map[string]*models.Brief
	articles map[string]*models.Article
	settings map[string]models.Settings

	progressViolations []string
	progressCalls      []int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		runs:     map[string]*models.Run{},
		sources:  map[string][]*models.Source{},
		briefs:   map[string]*models.Brief{},
		articles: map[string]*models.Article{},
		settings: map[string]models.Settings{},
	}
}

func (r *fakeRepo) id(prefix string) string {
	r.nextID++
	return fmt.Sprintf("%s-%d", prefix, r.nextID)
}

func (r *fakeRepo) CreateRun(ctx context.Context, userID, query string, mode models.RunMode, inputs models.RunInputs) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.id("run")
	r.runs[id] = &models.Run{ID: id, UserID: userID, Query: query, Mode: mode, Status: models.RunPending, Inputs: inputs}
	return id, nil
}

func (r *fakeRepo) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.settings[userID]; ok {
		return s, nil
	}
	return models.Settings{UserID: userID}, nil
}

func (r *fakeRepo) GetRunByID(ctx context.Context, runID string) (models.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok {
		return models.Run{}, sql.ErrNoRows
	}
	return *run, nil
}

func (r *fakeRepo) UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, progress int, stageLabel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runs[runID]
	if progress < run.Progress {
		r.progressViolations = append(r.progressViolations,
			fmt.Sprintf("%d -> %d at %s", run.Progress, progress, stageLabel))
	}
	if progress > run.Progress {
		run.Progress = progress
	}
	run.Status = status
	run.StageLabel = stageLabel
	r.progressCalls = append(r.progressCalls, run.Progress)
	return nil
}

func (r *fakeRepo) FinishRun(ctx context.Context, runID string, status models.RunStatus, failureReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !status.Terminal() {
		return fmt.Errorf("finish run with non-terminal status %q", status)
	}
	run := r.runs[runID]
	run.Status = status
	run.FailureReason = failureReason
	if status == models.RunCompleted {
		run.Progress = 100
		run.FailureReason = nil
	}
	return nil
}

func (r *fakeRepo) SetRunArtifacts(ctx context.Context, runID string, briefID, articleID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := r.runs[runID]
	if briefID != nil {
		run.BriefID = briefID
	}
	if articleID != nil {
		run.ArticleID = articleID
	}
	return nil
}

func (r *fakeRepo) CancelRequested(ctx context.Context, runID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID].CancelRequested, nil
}

func (r *fakeRepo) InsertSource(ctx context.Context, src models.Source) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src.ID = r.id("src")
	src.Status = models.SourcePending
	r.sources[src.RunID] = append(r.sources[src.RunID], &src)
	return src.ID, nil
}

func (r *fakeRepo) ListSources(ctx context.Context, runID string) ([]models.Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Source, 0, len(r.sources[runID]))
	for _, src := range r.sources[runID] {
		out = append(out, *src)
	}
	return out, nil
}

func (r *fakeRepo) findSource(sourceID string) *models.Source {
	for _, list := range r.sources {
		for _, src := range list {
			if src.ID == sourceID {
				return src
			}
		}
	}
	return nil
}

func (r *fakeRepo) MarkSourceFiltered(ctx context.Context, sourceID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.findSource(sourceID)
	src.Status = models.SourceFilteredOut
	src.Reason = &reason
	return nil
}

func (r *fakeRepo) MarkSourceFetched(ctx context.Context, sourceID, title, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.findSource(sourceID)
	src.Status = models.SourceFetched
	src.Title = title
	src.Text = text
	src.Reason = nil
	return nil
}

func (r *fakeRepo) MarkSourceExtractFailed(ctx context.Context, sourceID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.findSource(sourceID)
	src.Status = models.SourceExtractFailed
	src.Reason = &reason
	return nil
}

func (r *fakeRepo) MarkSourceSummarized(ctx context.Context, sourceID, summary string, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := r.findSource(sourceID)
	src.Status = models.SourceSummarized
	src.Summary = summary
	src.Reason = reason
	return nil
}

func (r *fakeRepo) CreateBrief(ctx context.Context, userID string, runID *string, query, content string) (models.Brief, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := models.Brief{ID: r.id("brief"), UserID: userID, RunID: runID, Query: query, Content: content, Version: 1}
	r.briefs[b.ID] = &b
	return b, nil
}

func (r *fakeRepo) CreateArticle(ctx context.Context, a models.Article) (models.Article, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id("article")
	r.articles[a.ID] = &a
	return a, nil
}
