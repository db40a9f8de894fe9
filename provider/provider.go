package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/seoforge/seoforge/config"
	openai_provider "github.com/seoforge/seoforge/provider/openai"
)

// Purpose routes a completion to the model configured for that task.
type Purpose string

const (
	PurposeSummary  Purpose = "summary"
	PurposeAnalysis Purpose = "analysis"
	PurposeBrief    Purpose = "brief"
	PurposeWriting  Purpose = "writing"
)

// ErrUnavailable indicates no credential is configured. Call sites
// treat it uniformly: degrade where a fallback exists, fail otherwise.
var ErrUnavailable = errors.New("llm provider unavailable: no credential configured")

// CallError wraps a failed provider call.
type CallError struct {
	Purpose Purpose
	Err     error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm call failed (%s): %v", e.Purpose, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Provider is the LLM capability consumed by the summarizer, gap
// analyzer and writer. Implementations are selected once at process
// start and injected.
type Provider interface {
	Complete(ctx context.Context, instruction, input string, purpose Purpose) (string, error)
	Enabled() bool
}

// New selects the provider implementation from configuration: the real
// OpenAI client when a key is present, the disabled stub otherwise.
func New(cfg config.LLMConfig) Provider {
	if cfg.APIKey == "" {
		return Disabled{}
	}
	models := map[string]string{
		string(PurposeSummary):  cfg.Routing.Summary,
		string(PurposeAnalysis): cfg.Routing.Analysis,
		string(PurposeBrief):    cfg.Routing.Analysis,
		string(PurposeWriting):  cfg.Routing.Writing,
	}
	return &openaiProvider{
		client: openai_provider.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Temperature, cfg.MaxTokens, cfg.Timeout),
		models: models,
	}
}

type openaiProvider struct {
	client *openai_provider.Client
	models map[string]string
}

func (p *openaiProvider) Enabled() bool { return true }

func (p *openaiProvider) Complete(ctx context.Context, instruction, input string, purpose Purpose) (string, error) {
	model := p.models[string(purpose)]
	if model == "" {
		model = p.models[string(PurposeAnalysis)]
	}
	out, err := p.client.Complete(ctx, model, instruction, input)
	if err != nil {
		return "", &CallError{Purpose: purpose, Err: err}
	}
	return out, nil
}

// Disabled is the deterministic stub used when no credential is
// configured. Every call fails with ErrUnavailable.
type Disabled struct{}

func (Disabled) Enabled() bool { return false }

func (Disabled) Complete(ctx context.Context, instruction, input string, purpose Purpose) (string, error) {
	return "", ErrUnavailable
}
