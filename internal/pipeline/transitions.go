package pipeline

import "github.com/seoforge/seoforge/models"

// transitions enumerates the legal run state machine edges. Jumps to
// writing from an early stage carry the quick-draft fallback; failed
// and cancelled are reachable from every non-terminal state.
var transitions = map[models.RunStatus][]models.RunStatus{
	models.RunPending:     {models.RunCollecting, models.RunWriting, models.RunFailed, models.RunCancelled},
	models.RunCollecting:  {models.RunFiltering, models.RunWriting, models.RunFailed, models.RunCancelled},
	models.RunFiltering:   {models.RunExtracting, models.RunWriting, models.RunFailed, models.RunCancelled},
	models.RunExtracting:  {models.RunSummarizing, models.RunWriting, models.RunFailed, models.RunCancelled},
	models.RunSummarizing: {models.RunAnalyzing, models.RunFailed, models.RunCancelled},
	models.RunAnalyzing:   {models.RunWriting, models.RunFailed, models.RunCancelled},
	models.RunWriting:     {models.RunCompleted, models.RunFailed, models.RunCancelled},
	models.RunCompleted:   nil,
	models.RunFailed:      nil,
	models.RunCancelled:   nil,
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to models.RunStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
