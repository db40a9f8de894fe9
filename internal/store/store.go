package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/seoforge/seoforge/models"
)

// Store wraps the Postgres connection. All artifact persistence for
// runs, sources, briefs and articles goes through here.
type Store struct {
	DB *sql.DB
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

// Settings operations

const settingsColumns = `user_id, name, brand_name, brand_url, brief_prompt_override, writer_prompt_override, updated_at`

// GetSettings returns the user's settings, or zero-value settings when
// none have been saved yet.
func (s *Store) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	var st models.Settings
	err := s.DB.QueryRowContext(ctx, `SELECT `+settingsColumns+` FROM user_settings WHERE user_id=$1`, userID).
		Scan(&st.UserID, &st.Name, &st.BrandName, &st.BrandURL, &st.BriefPromptOverride, &st.WriterPromptOverride, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.Settings{UserID: userID}, nil
	}
	return st, err
}

// UpsertSettings saves the user's settings, inserting the row on first
// save.
func (s *Store) UpsertSettings(ctx context.Context, st models.Settings) (models.Settings, error) {
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO user_settings (user_id, name, brand_name, brand_url, brief_prompt_override, writer_prompt_override)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (user_id) DO UPDATE SET
			name=EXCLUDED.name, brand_name=EXCLUDED.brand_name, brand_url=EXCLUDED.brand_url,
			brief_prompt_override=EXCLUDED.brief_prompt_override,
			writer_prompt_override=EXCLUDED.writer_prompt_override, updated_at=NOW()
		 RETURNING `+settingsColumns,
		st.UserID, st.Name, st.BrandName, st.BrandURL, st.BriefPromptOverride, st.WriterPromptOverride)
	var out models.Settings
	err := row.Scan(&out.UserID, &out.Name, &out.BrandName, &out.BrandURL, &out.BriefPromptOverride, &out.WriterPromptOverride, &out.UpdatedAt)
	return out, err
}

// Run operations

const runColumns = `id, user_id, query, mode, status, progress, stage_label, inputs,
	failure_reason, brief_id, article_id, cancel_requested, created_at, updated_at, completed_at`

func (s *Store) CreateRun(ctx context.Context, userID, query string, mode models.RunMode, inputs models.RunInputs) (string, error) {
	inputsB, err := json.Marshal(inputs)
	if err != nil {
		return "", fmt.Errorf("marshal run inputs: %w", err)
	}
	var id string
	err = s.DB.QueryRowContext(ctx,
		`INSERT INTO runs (user_id, query, mode, status, inputs) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		userID, query, string(mode), string(models.RunPending), inputsB).Scan(&id)
	return id, err
}

func scanRun(row interface {
	Scan(dest ...interface{}) error
}) (models.Run, error) {
	var r models.Run
	var inputsB []byte
	err := row.Scan(&r.ID, &r.UserID, &r.Query, &r.Mode, &r.Status, &r.Progress, &r.StageLabel, &inputsB,
		&r.FailureReason, &r.BriefID, &r.ArticleID, &r.CancelRequested, &r.CreatedAt, &r.UpdatedAt, &r.CompletedAt)
	if err != nil {
		return models.Run{}, err
	}
	if len(inputsB) > 0 {
		if err := json.Unmarshal(inputsB, &r.Inputs); err != nil {
			return models.Run{}, fmt.Errorf("unmarshal run inputs: %w", err)
		}
	}
	return r, nil
}

// GetRun fetches a run scoped to its owning user.
func (s *Store) GetRun(ctx context.Context, runID, userID string) (models.Run, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1 AND user_id=$2`, runID, userID)
	return scanRun(row)
}

// GetRunByID fetches a run without ownership scoping; pipeline internals only.
func (s *Store) GetRunByID(ctx context.Context, runID string) (models.Run, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, runID)
	return scanRun(row)
}

func (s *Store) ListRuns(ctx context.Context, userID string) ([]models.Run, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+runColumns+` FROM runs WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// UpdateRunProgress advances status, progress and stage label.
// GREATEST keeps the persisted percentage monotonic even if a caller
// computes a smaller value, and the status guard keeps terminal runs
// immutable.
func (s *Store) UpdateRunProgress(ctx context.Context, runID string, status models.RunStatus, progress int, stageLabel string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, progress=GREATEST(progress,$3), stage_label=$4, updated_at=NOW()
		 WHERE id=$1 AND status NOT IN ('completed','failed','cancelled')`,
		runID, string(status), progress, stageLabel)
	return err
}

// FinishRun moves a run to a terminal status with an optional reason.
func (s *Store) FinishRun(ctx context.Context, runID string, status models.RunStatus, failureReason *string) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run with non-terminal status %q", status)
	}
	progress := 100
	if status != models.RunCompleted {
		// leave progress where it was on failure/cancel
		_, err := s.DB.ExecContext(ctx,
			`UPDATE runs SET status=$2, stage_label=$3, failure_reason=$4, updated_at=NOW(), completed_at=NOW()
			 WHERE id=$1 AND status NOT IN ('completed','failed','cancelled')`,
			runID, string(status), string(status), failureReason)
		return err
	}
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET status=$2, progress=GREATEST(progress,$3), stage_label='completed', failure_reason=NULL, updated_at=NOW(), completed_at=NOW()
		 WHERE id=$1 AND status NOT IN ('completed','failed','cancelled')`,
		runID, string(status), progress)
	return err
}

// SetRunArtifacts records the produced brief/article references.
func (s *Store) SetRunArtifacts(ctx context.Context, runID string, briefID, articleID *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET brief_id=COALESCE($2, brief_id), article_id=COALESCE($3, article_id), updated_at=NOW() WHERE id=$1`,
		runID, briefID, articleID)
	return err
}

// RequestCancel flags a run for cooperative cancellation. Terminal
// runs are left untouched; returns whether the flag was set.
func (s *Store) RequestCancel(ctx context.Context, runID, userID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE runs SET cancel_requested=TRUE, updated_at=NOW()
		 WHERE id=$1 AND user_id=$2 AND status NOT IN ('completed','failed','cancelled')`,
		runID, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) CancelRequested(ctx context.Context, runID string) (bool, error) {
	var flag bool
	err := s.DB.QueryRowContext(ctx, `SELECT cancel_requested FROM runs WHERE id=$1`, runID).Scan(&flag)
	return flag, err
}

// ListStalePendingRuns returns runs still pending after the given age,
// candidates for requeue by the janitor.
func (s *Store) ListStalePendingRuns(ctx context.Context, olderThan time.Duration) ([]models.Run, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE status='pending' AND updated_at < NOW() - ($1 * INTERVAL '1 second')`,
		int64(olderThan/time.Second))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Source operations

// InsertSource persists one candidate and returns its id. The source
// set for a run is append-only until filtering completes and fixed
// afterwards; the controller enforces that ordering.
func (s *Store) InsertSource(ctx context.Context, src models.Source) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx,
		`INSERT INTO sources (run_id, url, normalized_url, pos, status) VALUES ($1,$2,$3,$4,$5) RETURNING id`,
		src.RunID, src.URL, src.NormalizedURL, src.Position, string(models.SourcePending)).Scan(&id)
	return id, err
}

func (s *Store) ListSources(ctx context.Context, runID string) ([]models.Source, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, run_id, url, normalized_url, pos, status, title,
			COALESCE(extracted_text,''), COALESCE(summary,''), reason, created_at, updated_at
		 FROM sources WHERE run_id=$1 ORDER BY pos`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.ID, &src.RunID, &src.URL, &src.NormalizedURL, &src.Position, &src.Status,
			&src.Title, &src.Text, &src.Summary, &src.Reason, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) MarkSourceFiltered(ctx context.Context, sourceID, reason string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET status=$2, reason=$3, updated_at=NOW() WHERE id=$1`,
		sourceID, string(models.SourceFilteredOut), reason)
	return err
}

func (s *Store) MarkSourceFetched(ctx context.Context, sourceID, title, text string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET status=$2, title=$3, extracted_text=$4, reason=NULL, updated_at=NOW() WHERE id=$1`,
		sourceID, string(models.SourceFetched), title, text)
	return err
}

func (s *Store) MarkSourceExtractFailed(ctx context.Context, sourceID, reason string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET status=$2, reason=$3, updated_at=NOW() WHERE id=$1`,
		sourceID, string(models.SourceExtractFailed), reason)
	return err
}

// MarkSourceSummarized records the summary; reason is non-nil only
// when the extractive fallback was used (degraded mode).
func (s *Store) MarkSourceSummarized(ctx context.Context, sourceID, summary string, reason *string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE sources SET status=$2, summary=$3, reason=$4, updated_at=NOW() WHERE id=$1`,
		sourceID, string(models.SourceSummarized), summary, reason)
	return err
}

// Brief operations

const briefColumns = `id, user_id, run_id, query, content, version, created_at, updated_at`

func (s *Store) CreateBrief(ctx context.Context, userID string, runID *string, query, content string) (models.Brief, error) {
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO briefs (user_id, run_id, query, content) VALUES ($1,$2,$3,$4) RETURNING `+briefColumns,
		userID, runID, query, content)
	return scanBrief(row)
}

func scanBrief(row interface {
	Scan(dest ...interface{}) error
}) (models.Brief, error) {
	var b models.Brief
	err := row.Scan(&b.ID, &b.UserID, &b.RunID, &b.Query, &b.Content, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *Store) GetBrief(ctx context.Context, briefID, userID string) (models.Brief, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+briefColumns+` FROM briefs WHERE id=$1 AND user_id=$2`, briefID, userID)
	return scanBrief(row)
}

func (s *Store) ListBriefs(ctx context.Context, userID string) ([]models.Brief, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+briefColumns+` FROM briefs WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateBriefContent replaces the markdown and bumps the version counter.
func (s *Store) UpdateBriefContent(ctx context.Context, briefID, userID, content string) (models.Brief, error) {
	row := s.DB.QueryRowContext(ctx,
		`UPDATE briefs SET content=$3, version=version+1, updated_at=NOW()
		 WHERE id=$1 AND user_id=$2 RETURNING `+briefColumns,
		briefID, userID, content)
	return scanBrief(row)
}

// ListAllBriefs returns every brief; used to rebuild the search index
// at startup.
func (s *Store) ListAllBriefs(ctx context.Context) ([]models.Brief, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+briefColumns+` FROM briefs ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Brief
	for rows.Next() {
		b, err := scanBrief(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// Article operations

const articleColumns = `id, user_id, query, mode, brief_id, content, export_path, created_at`

func (s *Store) CreateArticle(ctx context.Context, a models.Article) (models.Article, error) {
	row := s.DB.QueryRowContext(ctx,
		`INSERT INTO articles (user_id, query, mode, brief_id, content, export_path) VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+articleColumns,
		a.UserID, a.Query, string(a.Mode), a.BriefID, a.Content, a.ExportPath)
	return scanArticle(row)
}

func scanArticle(row interface {
	Scan(dest ...interface{}) error
}) (models.Article, error) {
	var a models.Article
	err := row.Scan(&a.ID, &a.UserID, &a.Query, &a.Mode, &a.BriefID, &a.Content, &a.ExportPath, &a.CreatedAt)
	return a, err
}

func (s *Store) GetArticle(ctx context.Context, articleID, userID string) (models.Article, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id=$1 AND user_id=$2`, articleID, userID)
	return scanArticle(row)
}

// ListAllArticles returns every article; used to rebuild the search
// index at startup.
func (s *Store) ListAllArticles(ctx context.Context) ([]models.Article, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) ListArticles(ctx context.Context, userID string) ([]models.Article, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
