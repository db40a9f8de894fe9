package pipeline

import (
	"context"
	"fmt"

	"github.com/seoforge/seoforge/models"
)

// Stage weights sum to 100. Skipped stages count as complete, so a
// quick-draft run starts writing at 85 percent.
var stageWeights = map[models.RunStatus]int{
	models.RunCollecting:  5,
	models.RunFiltering:   5,
	models.RunExtracting:  30,
	models.RunSummarizing: 30,
	models.RunAnalyzing:   15,
	models.RunWriting:     15,
}

var stageOrder = []models.RunStatus{
	models.RunCollecting,
	models.RunFiltering,
	models.RunExtracting,
	models.RunSummarizing,
	models.RunAnalyzing,
	models.RunWriting,
}

// stageBase returns the cumulative percent completed before a stage
// begins.
func stageBase(stage models.RunStatus) int {
	base := 0
	for _, s := range stageOrder {
		if s == stage {
			return base
		}
		base += stageWeights[s]
	}
	return base
}

// progressRecorder is the slice of the repository the reporter needs.
type progressRecorder interface {
	UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, progress int, stageLabel string) error
}

// Reporter converts stage position into a monotonic overall percent
// and a human stage label. The store clamps with GREATEST as a second
// line of defence; the reporter itself never goes backwards.
type Reporter struct {
	repo  progressRecorder
	runID string
	last  int
}

func NewReporter(repo progressRecorder, runID string) *Reporter {
	return &Reporter{repo: repo, runID: runID}
}

// StageStart marks a stage as entered.
func (r *Reporter) StageStart(ctx context.Context, stage models.RunStatus, label string) error {
	return r.record(ctx, stage, stageBase(stage), label)
}

// StageStep reports done-of-total progress within a stage, e.g.
// "Extracting source 3 of 7".
func (r *Reporter) StageStep(ctx context.Context, stage models.RunStatus, done, total int, label string) error {
	pct := stageBase(stage)
	if total > 0 {
		pct += stageWeights[stage] * done / total
	}
	if label == "" {
		label = fmt.Sprintf("%s %d of %d", stage, done, total)
	}
	return r.record(ctx, stage, pct, label)
}

func (r *Reporter) record(ctx context.Context, stage models.RunStatus, pct int, label string) error {
	if pct < r.last {
		pct = r.last
	}
	if pct > 100 {
		pct = 100
	}
	r.last = pct
	return r.repo.UpdateRunProgress(ctx, r.runID, stage, pct, label)
}

// Last returns the highest percent reported so far.
func (r *Reporter) Last() int { return r.last }
