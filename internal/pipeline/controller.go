package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/seoforge/seoforge/config"
	"github.com/seoforge/seoforge/internal/export"
	"github.com/seoforge/seoforge/internal/fetch"
	"github.com/seoforge/seoforge/models"
	"github.com/seoforge/seoforge/provider"
)

// ErrInvalidInput marks run creation rejected for bad inputs; the HTTP
// layer maps it to 400.
var ErrInvalidInput = errors.New("invalid run input")

// errCancelled propagates a cooperative cancellation observed at a
// stage boundary.
var errCancelled = errors.New("run cancelled")

// Repository is the persistence surface the controller needs. It is
// satisfied by *store.Store; tests substitute an in-memory fake.
type Repository interface {
	CreateRun(ctx context.Context, userID, query string, mode models.RunMode, inputs models.RunInputs) (string, error)
	GetSettings(ctx context.Context, userID string) (models.Settings, error)
	GetRunByID(ctx context.Context, runID string) (models.Run, error)
	UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, progress int, stageLabel string) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, failureReason *string) error
	SetRunArtifacts(ctx context.Context, runID string, briefID, articleID *string) error
	CancelRequested(ctx context.Context, runID string) (bool, error)
	InsertSource(ctx context.Context, src models.Source) (string, error)
	ListSources(ctx context.Context, runID string) ([]models.Source, error)
	MarkSourceFiltered(ctx context.Context, sourceID, reason string) error
	MarkSourceFetched(ctx context.Context, sourceID, title, text string) error
	MarkSourceExtractFailed(ctx context.Context, sourceID, reason string) error
	MarkSourceSummarized(ctx context.Context, sourceID, summary string, reason *string) error
	CreateBrief(ctx context.Context, userID string, runID *string, query, content string) (models.Brief, error)
	CreateArticle(ctx context.Context, a models.Article) (models.Article, error)
}

// Controller drives runs through the stage machine. One controller
// serves the whole process; each run executes on its own goroutine
// while extraction and summarization fan out under the shared
// semaphore.
type Controller struct {
	repo     Repository
	prov     provider.Provider
	fetcher  fetch.WebFetcher
	exporter *export.Exporter
	cfg      config.PipelineConfig
	logger   *log.Logger

	sem chan struct{}
}

func NewController(repo Repository, prov provider.Provider, fetcher fetch.WebFetcher, exporter *export.Exporter, cfg config.PipelineConfig, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(log.Writer(), "[PIPE] ", log.LstdFlags)
	}
	limit := cfg.WorkerLimit
	if limit <= 0 {
		limit = 1
	}
	return &Controller{
		repo:     repo,
		prov:     prov,
		fetcher:  fetcher,
		exporter: exporter,
		cfg:      cfg,
		logger:   logger,
		sem:      make(chan struct{}, limit),
	}
}

// CreateRun validates the inputs against the mode and persists the
// pending run. It does not start execution; callers dispatch Execute
// on their own goroutine.
func (c *Controller) CreateRun(ctx context.Context, userID, query string, mode models.RunMode, inputs models.RunInputs) (models.Run, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Run{}, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	switch mode {
	case models.ModeSeedURLs:
		if len(inputs.SeedURLs) == 0 {
			return models.Run{}, fmt.Errorf("%w: seed_urls mode requires at least one url", ErrInvalidInput)
		}
	case models.ModeCitationsText:
		if strings.TrimSpace(inputs.CitationsText) == "" && strings.TrimSpace(inputs.OverviewText) == "" {
			return models.Run{}, fmt.Errorf("%w: citations_text mode requires citations or overview text", ErrInvalidInput)
		}
	case models.ModePastedBrief:
		if strings.TrimSpace(inputs.PastedBrief) == "" {
			return models.Run{}, fmt.Errorf("%w: pasted_brief mode requires brief content", ErrInvalidInput)
		}
	case models.ModeQuickDraft:
		// query alone is enough
	default:
		return models.Run{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}

	id, err := c.repo.CreateRun(ctx, userID, query, mode, inputs)
	if err != nil {
		return models.Run{}, fmt.Errorf("create run: %w", err)
	}
	return c.repo.GetRunByID(ctx, id)
}

// Execute drives one run to a terminal state. It never returns an
// error; every outcome is persisted on the run record.
func (c *Controller) Execute(ctx context.Context, runID string) {
	run, err := c.repo.GetRunByID(ctx, runID)
	if err != nil {
		c.logger.Printf("run %s: load failed: %v", runID, err)
		return
	}
	if run.Status.Terminal() {
		return
	}
	runsStarted.Inc()

	err = c.execute(ctx, run)
	switch {
	case errors.Is(err, errCancelled):
		reason := "cancelled by user"
		if ferr := c.repo.FinishRun(ctx, runID, models.RunCancelled, &reason); ferr != nil {
			c.logger.Printf("run %s: persist cancel: %v", runID, ferr)
		}
		runsFinished.WithLabelValues(string(models.RunCancelled)).Inc()
		c.logger.Printf("run %s: cancelled", runID)
	case err != nil:
		reason := err.Error()
		if ferr := c.repo.FinishRun(ctx, runID, models.RunFailed, &reason); ferr != nil {
			c.logger.Printf("run %s: persist failure: %v", runID, ferr)
		}
		runsFinished.WithLabelValues(string(models.RunFailed)).Inc()
		c.logger.Printf("run %s: failed: %v", runID, err)
	default:
		if ferr := c.repo.FinishRun(ctx, runID, models.RunCompleted, nil); ferr != nil {
			c.logger.Printf("run %s: persist completion: %v", runID, ferr)
		}
		runsFinished.WithLabelValues(string(models.RunCompleted)).Inc()
		c.logger.Printf("run %s: completed", runID)
	}
}

func (c *Controller) execute(ctx context.Context, run models.Run) error {
	rep := NewReporter(c.repo, run.ID)
	cur := run.Status
	cust := c.customization(ctx, run.UserID)

	switch run.Mode {
	case models.ModeQuickDraft:
		return c.writeStage(ctx, rep, &cur, run, "", models.ArticleQuickDraft, cust)
	case models.ModePastedBrief:
		return c.writeStage(ctx, rep, &cur, run, run.Inputs.PastedBrief, models.ArticlePastedBrief, cust)
	}

	// collecting
	if err := c.enter(ctx, rep, &cur, run.ID, models.RunCollecting, "Collecting sources"); err != nil {
		return err
	}
	candidates := CollectCandidates(run.Inputs, c.cfg.MaxSources)
	for _, cand := range candidates {
		src := models.Source{RunID: run.ID, URL: cand.URL, NormalizedURL: cand.NormalizedURL, Position: cand.Position}
		if _, err := c.repo.InsertSource(ctx, src); err != nil {
			return fmt.Errorf("persist source %s: %w", cand.URL, err)
		}
	}
	if len(candidates) == 0 {
		c.logger.Printf("run %s: no candidate sources, falling back to quick draft", run.ID)
		return c.writeStage(ctx, rep, &cur, run, "", models.ArticleQuickDraft, cust)
	}

	// filtering
	if err := c.enter(ctx, rep, &cur, run.ID, models.RunFiltering, "Filtering sources"); err != nil {
		return err
	}
	sources, err := c.repo.ListSources(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	rules := BuildFilterRules(c.cfg.BlockedDomains, c.cfg.BlockedPathHints)
	survivors := sources[:0:0]
	for i, src := range sources {
		if reason, matched := MatchFilterRule(rules, src.NormalizedURL); matched {
			if err := c.repo.MarkSourceFiltered(ctx, src.ID, reason); err != nil {
				return fmt.Errorf("mark filtered: %w", err)
			}
			sourceOutcomes.WithLabelValues("filtered_out").Inc()
		} else {
			survivors = append(survivors, src)
		}
		if err := rep.StageStep(ctx, models.RunFiltering, i+1, len(sources),
			fmt.Sprintf("Filtering source %d of %d", i+1, len(sources))); err != nil {
			return err
		}
	}
	if len(survivors) == 0 {
		c.logger.Printf("run %s: every source filtered out, falling back to quick draft", run.ID)
		return c.writeStage(ctx, rep, &cur, run, "", models.ArticleQuickDraft, cust)
	}

	// extracting
	if err := c.enter(ctx, rep, &cur, run.ID, models.RunExtracting, "Extracting content"); err != nil {
		return err
	}
	fetched, err := c.extractStage(ctx, rep, survivors)
	if err != nil {
		return err
	}
	if fetched < c.cfg.MinUsableSources {
		c.logger.Printf("run %s: %d of %d sources usable (minimum %d), falling back to quick draft",
			run.ID, fetched, len(survivors), c.cfg.MinUsableSources)
		return c.writeStage(ctx, rep, &cur, run, "", models.ArticleQuickDraft, cust)
	}

	// summarizing
	if err := c.enter(ctx, rep, &cur, run.ID, models.RunSummarizing, "Summarizing sources"); err != nil {
		return err
	}
	if err := c.summarizeStage(ctx, rep, run.ID); err != nil {
		return err
	}

	// analyzing: gap analysis then the brief artifact
	if err := c.enter(ctx, rep, &cur, run.ID, models.RunAnalyzing, "Analyzing competitor gaps"); err != nil {
		return err
	}
	sources, err = c.repo.ListSources(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	sctx, cancel := c.stageContext(ctx)
	analysis, err := AnalyzeGaps(sctx, c.prov, run.Query, sources)
	if err != nil {
		cancel()
		return err
	}
	briefContent, err := BuildBrief(sctx, c.prov, run.Query, sources, analysis, cust)
	cancel()
	if err != nil {
		return err
	}
	brief, err := c.repo.CreateBrief(ctx, run.UserID, &run.ID, run.Query, briefContent)
	if err != nil {
		return fmt.Errorf("persist brief: %w", err)
	}
	if err := c.repo.SetRunArtifacts(ctx, run.ID, &brief.ID, nil); err != nil {
		return fmt.Errorf("record brief on run: %w", err)
	}
	run.BriefID = &brief.ID

	// writing
	return c.writeStage(ctx, rep, &cur, run, briefContent, models.ArticleFromBrief, cust)
}

// customization loads the user's settings; any load failure falls back
// to stock prompts rather than failing the run.
func (c *Controller) customization(ctx context.Context, userID string) models.Settings {
	cust, err := c.repo.GetSettings(ctx, userID)
	if err != nil {
		c.logger.Printf("load settings for user %s: %v", userID, err)
		return models.Settings{}
	}
	return cust
}

// extractStage fans extraction out under the shared semaphore. Workers
// only fetch and extract; all persistence and progress reporting stays
// on this goroutine so DB writes and the reporter remain serial.
func (c *Controller) extractStage(ctx context.Context, rep *Reporter, survivors []models.Source) (int, error) {
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	type outcome struct {
		src   models.Source
		title string
		text  string
		err   error
	}
	// buffered so late workers can still deliver (and release their
	// semaphore slot) after this loop bails out on a timeout
	results := make(chan outcome, len(survivors))
	ex := &Extractor{Fetcher: c.fetcher, MinWords: c.cfg.MinExtractWords, MaxChars: c.cfg.MaxExtractChars, FetchTimeout: c.cfg.FetchTimeout}
	for _, src := range survivors {
		go func(src models.Source) {
			select {
			case c.sem <- struct{}{}:
			case <-sctx.Done():
				results <- outcome{src: src, err: sctx.Err()}
				return
			}
			defer func() { <-c.sem }()
			title, text, err := ex.Extract(sctx, src.URL)
			results <- outcome{src: src, title: title, text: text, err: err}
		}(src)
	}

	fetched := 0
	for i := 0; i < len(survivors); i++ {
		out := <-results
		if errors.Is(out.err, context.DeadlineExceeded) || errors.Is(out.err, context.Canceled) {
			return fetched, fmt.Errorf("extraction stage timed out: %w", out.err)
		}
		if out.err != nil {
			if err := c.repo.MarkSourceExtractFailed(ctx, out.src.ID, out.err.Error()); err != nil {
				return fetched, fmt.Errorf("mark extract failed: %w", err)
			}
			sourceOutcomes.WithLabelValues("extract_failed").Inc()
		} else {
			if err := c.repo.MarkSourceFetched(ctx, out.src.ID, out.title, out.text); err != nil {
				return fetched, fmt.Errorf("mark fetched: %w", err)
			}
			sourceOutcomes.WithLabelValues("fetched").Inc()
			fetched++
		}
		if err := rep.StageStep(ctx, models.RunExtracting, i+1, len(survivors),
			fmt.Sprintf("Extracting source %d of %d", i+1, len(survivors))); err != nil {
			return fetched, err
		}
	}
	return fetched, nil
}

// summarizeStage summarizes every fetched source, same fan-out shape
// as extraction.
func (c *Controller) summarizeStage(ctx context.Context, rep *Reporter, runID string) error {
	sources, err := c.repo.ListSources(ctx, runID)
	if err != nil {
		return fmt.Errorf("list sources: %w", err)
	}
	var targets []models.Source
	for _, src := range sources {
		if src.Status == models.SourceFetched {
			targets = append(targets, src)
		}
	}

	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	type outcome struct {
		src      models.Source
		summary  string
		degraded *string
	}
	results := make(chan outcome, len(targets))
	for _, src := range targets {
		go func(src models.Source) {
			select {
			case c.sem <- struct{}{}:
			case <-sctx.Done():
				results <- outcome{src: src, summary: extractiveSummary(src.Text)}
				return
			}
			defer func() { <-c.sem }()
			summary, degraded := SummarizeSource(sctx, c.prov, src.URL, src.Title, src.Text)
			results <- outcome{src: src, summary: summary, degraded: degraded}
		}(src)
	}

	for i := 0; i < len(targets); i++ {
		out := <-results
		if err := c.repo.MarkSourceSummarized(ctx, out.src.ID, out.summary, out.degraded); err != nil {
			return fmt.Errorf("mark summarized: %w", err)
		}
		sourceOutcomes.WithLabelValues("summarized").Inc()
		if out.degraded != nil {
			providerDegradations.Inc()
		}
		if err := rep.StageStep(ctx, models.RunSummarizing, i+1, len(targets),
			fmt.Sprintf("Summarizing source %d of %d", i+1, len(targets))); err != nil {
			return err
		}
	}
	return nil
}

// writeStage produces the article. With empty briefContent it first
// builds the query-only provisional brief, which is both the quick
// draft path and the fallback for runs whose source stages came up
// empty.
func (c *Controller) writeStage(ctx context.Context, rep *Reporter, cur *models.RunStatus, run models.Run, briefContent string, mode models.ArticleMode, cust models.Settings) error {
	if err := c.enter(ctx, rep, cur, run.ID, models.RunWriting, "Drafting article"); err != nil {
		return err
	}
	sctx, cancel := c.stageContext(ctx)
	defer cancel()

	var briefID *string
	if briefContent == "" {
		content, err := BuildBriefFromQuery(sctx, c.prov, run.Query, cust)
		if err != nil {
			return err
		}
		briefContent = content
	}
	if run.BriefID == nil {
		brief, err := c.repo.CreateBrief(ctx, run.UserID, &run.ID, run.Query, briefContent)
		if err != nil {
			return fmt.Errorf("persist brief: %w", err)
		}
		briefID = &brief.ID
		if err := c.repo.SetRunArtifacts(ctx, run.ID, briefID, nil); err != nil {
			return fmt.Errorf("record brief on run: %w", err)
		}
	} else {
		briefID = run.BriefID
	}

	content, err := WriteArticle(sctx, c.prov, run.Query, briefContent, mode, cust)
	if err != nil {
		return err
	}

	article := models.Article{UserID: run.UserID, Query: run.Query, Mode: mode, BriefID: briefID, Content: content}
	if c.exporter != nil {
		if path, err := c.exporter.WriteMarkdown(run.Query, content); err != nil {
			c.logger.Printf("run %s: export failed: %v", run.ID, err)
		} else {
			article.ExportPath = &path
		}
	}
	saved, err := c.repo.CreateArticle(ctx, article)
	if err != nil {
		return fmt.Errorf("persist article: %w", err)
	}
	if err := c.repo.SetRunArtifacts(ctx, run.ID, nil, &saved.ID); err != nil {
		return fmt.Errorf("record article on run: %w", err)
	}
	return nil
}

// enter moves the run to the next stage after checking the transition
// table and the cancellation flag. Cancellation is observed only here,
// at stage boundaries.
func (c *Controller) enter(ctx context.Context, rep *Reporter, cur *models.RunStatus, runID string, next models.RunStatus, label string) error {
	cancelled, err := c.repo.CancelRequested(ctx, runID)
	if err != nil {
		return fmt.Errorf("check cancellation: %w", err)
	}
	if cancelled {
		return errCancelled
	}
	if !CanTransition(*cur, next) {
		return fmt.Errorf("illegal transition %s -> %s", *cur, next)
	}
	*cur = next
	return rep.StageStart(ctx, next, label)
}

func (c *Controller) stageContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.StageTimeout > 0 {
		return context.WithTimeout(ctx, c.cfg.StageTimeout)
	}
	return context.WithCancel(ctx)
}
