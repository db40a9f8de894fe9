package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seoforge/seoforge/models"
	"github.com/seoforge/seoforge/provider"
)

// ErrWriterUnavailable marks a quick draft attempted with no provider:
// there is nothing source-grounded to fall back on, so the run fails.
var ErrWriterUnavailable = errors.New("quick draft requires a configured llm provider")

// WriteArticle drafts the article from the content brief. On provider
// failure every source-backed mode degrades to a labeled outline stub
// built from the brief; quick drafts have no material of their own and
// fail instead. The user's writer prompt override replaces the stock
// instruction; brand settings extend the input.
func WriteArticle(ctx context.Context, prov provider.Provider, query, briefContent string, mode models.ArticleMode, cust models.Settings) (string, error) {
	input := fmt.Sprintf("Primary query: %s\n\nContent brief:\n%s", query, briefContent)
	if bc := brandContext(cust); bc != "" {
		input += "\n\n" + bc
	}
	out, err := prov.Complete(ctx, instructionOr(cust.WriterPromptOverride, writerInstruction), input, provider.PurposeWriting)
	if err == nil {
		return strings.TrimSpace(out), nil
	}
	if mode == models.ArticleQuickDraft && errors.Is(err, provider.ErrUnavailable) {
		return "", ErrWriterUnavailable
	}
	var callErr *provider.CallError
	if errors.Is(err, provider.ErrUnavailable) || errors.As(err, &callErr) {
		return stubArticle(query, briefContent), nil
	}
	return "", fmt.Errorf("write article: %w", err)
}

// stubArticle is the outline-only draft emitted when generation is
// unavailable. It is clearly labeled so editors never mistake it for a
// finished piece.
func stubArticle(query, briefContent string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Draft outline: %s\n\n", query)
	b.WriteString("> Automatic generation was unavailable; this draft contains the brief outline only.\n\n")
	b.WriteString(briefContent)
	return strings.TrimSpace(b.String())
}
