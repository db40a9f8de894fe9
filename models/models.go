package models

import "time"

// RunStatus enumerates the run state machine states.
type RunStatus string

const (
	RunPending     RunStatus = "pending"
	RunCollecting  RunStatus = "collecting"
	RunFiltering   RunStatus = "filtering"
	RunExtracting  RunStatus = "extracting"
	RunSummarizing RunStatus = "summarizing"
	RunAnalyzing   RunStatus = "analyzing"
	RunWriting     RunStatus = "writing"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunCancelled   RunStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// RunMode selects how a run sources its inputs.
type RunMode string

const (
	ModeSeedURLs      RunMode = "seed_urls"
	ModeCitationsText RunMode = "citations_text"
	ModePastedBrief   RunMode = "pasted_brief"
	ModeQuickDraft    RunMode = "quick_draft"
)

// RunInputs is the immutable input snapshot captured at run creation.
type RunInputs struct {
	SeedURLs      []string `json:"seed_urls,omitempty"`
	CitationsText string   `json:"citations_text,omitempty"`
	OverviewText  string   `json:"overview_text,omitempty"`
	PastedBrief   string   `json:"pasted_brief,omitempty"`
}

// Run is one end-to-end pipeline execution for a query.
type Run struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Query           string     `json:"query"`
	Mode            RunMode    `json:"mode"`
	Status          RunStatus  `json:"status"`
	Progress        int        `json:"progress"`
	StageLabel      string     `json:"stage_label"`
	Inputs          RunInputs  `json:"inputs"`
	FailureReason   *string    `json:"failure_reason,omitempty"`
	BriefID         *string    `json:"brief_id,omitempty"`
	ArticleID       *string    `json:"article_id,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// SourceStatus enumerates per-source outcomes within a run.
type SourceStatus string

const (
	SourcePending       SourceStatus = "pending"
	SourceFilteredOut   SourceStatus = "filtered_out"
	SourceFetched       SourceStatus = "fetched"
	SourceExtractFailed SourceStatus = "extract_failed"
	SourceSummarized    SourceStatus = "summarized"
)

// Source is one candidate competitor URL considered within a run.
// Reason carries the filter rule or failure cause; it stays nil on
// success paths so the audit trail distinguishes "fine" from "unset".
type Source struct {
	ID            string       `json:"id"`
	RunID         string       `json:"run_id"`
	URL           string       `json:"url"`
	NormalizedURL string       `json:"normalized_url"`
	Position      int          `json:"position"`
	Status        SourceStatus `json:"status"`
	Title         string       `json:"title,omitempty"`
	Text          string       `json:"-"`
	Summary       string       `json:"summary,omitempty"`
	Reason        *string      `json:"reason,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Brief is the editable markdown artifact preceding article generation.
type Brief struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	RunID     *string   `json:"run_id,omitempty"`
	Query     string    `json:"query"`
	Content   string    `json:"content"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ArticleMode records which input produced an article.
type ArticleMode string

const (
	ArticleFromBrief   ArticleMode = "from_brief"
	ArticlePastedBrief ArticleMode = "pasted_brief"
	ArticleQuickDraft  ArticleMode = "quick_draft"
)

// Settings holds per-user brand context and prompt overrides applied
// when building briefs and drafting articles. A user without a row has
// zero-value settings, which leave the stock prompts untouched.
type Settings struct {
	UserID               string    `json:"user_id"`
	Name                 string    `json:"name"`
	BrandName            string    `json:"brand_name"`
	BrandURL             string    `json:"brand_url"`
	BriefPromptOverride  string    `json:"brief_prompt_override"`
	WriterPromptOverride string    `json:"writer_prompt_override"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Article is a final generated draft.
type Article struct {
	ID         string      `json:"id"`
	UserID     string      `json:"user_id"`
	Query      string      `json:"query"`
	Mode       ArticleMode `json:"mode"`
	BriefID    *string     `json:"brief_id,omitempty"`
	Content    string      `json:"content"`
	ExportPath *string     `json:"export_path,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
