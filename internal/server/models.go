package server

// HTTPError is the generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// CreateRunRequest starts a pipeline run.
type CreateRunRequest struct {
	Query         string   `json:"query"`
	Mode          string   `json:"mode"`
	SeedURLs      []string `json:"seed_urls,omitempty"`
	CitationsText string   `json:"citations_text,omitempty"`
	OverviewText  string   `json:"overview_text,omitempty"`
	PastedBrief   string   `json:"pasted_brief,omitempty"`
}

// CreateBriefRequest builds a standalone brief, optionally grounded in
// competitor sources via a source-backed run.
type CreateBriefRequest struct {
	Query         string   `json:"query"`
	SeedURLs      []string `json:"seed_urls,omitempty"`
	CitationsText string   `json:"citations_text,omitempty"`
	OverviewText  string   `json:"overview_text,omitempty"`
}

// UpdateBriefRequest replaces the brief markdown; each edit bumps the
// version counter.
type UpdateBriefRequest struct {
	Content string `json:"content"`
}

// UpdateSettingsRequest replaces the user's profile and prompt
// customization; empty overrides fall back to the stock prompts.
type UpdateSettingsRequest struct {
	Name                 string `json:"name"`
	BrandName            string `json:"brand_name"`
	BrandURL             string `json:"brand_url"`
	BriefPromptOverride  string `json:"brief_prompt_override"`
	WriterPromptOverride string `json:"writer_prompt_override"`
}

// CreateArticleRequest drafts an article from a stored brief, a pasted
// brief, or the bare query.
type CreateArticleRequest struct {
	Query       string `json:"query"`
	Mode        string `json:"mode"` // from_brief | pasted_brief | quick_draft
	BriefID     string `json:"brief_id,omitempty"`
	PastedBrief string `json:"pasted_brief,omitempty"`
}
