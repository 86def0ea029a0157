// Package summarize runs one pass of the external summarization capability:
// either extracting a fresh handover document from new conversation turns, or
// merging a new fragment into the previous handover document.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erg0nix/handover/internal/config"
)

// ErrGenerationFailed covers every way a pass can fail to produce a usable
// document: backend unavailable or unauthenticated, timeout, or empty output.
var ErrGenerationFailed = errors.New("generation failed")

// Summarizer is the external capability: one blocking call, prompt in, text out.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// New builds the summarizer selected by cfg.Backend.
func New(cfg config.SummarizerConfig, debug config.DebugConfig) (Summarizer, error) {
	var logger *RequestLogger
	if debug.LogRequests || debug.LogResponses {
		logger = NewRequestLogger(debug.LogDirectory, debug.LogRequests, debug.LogResponses)
	}

	switch cfg.Backend {
	case config.BackendClaude, "":
		return &ClaudeCLI{
			Command: cfg.Command,
			Model:   cfg.Model,
			Args:    cfg.Args,
			logger:  logger,
		}, nil
	case config.BackendOpenAI:
		return NewOpenAI(OpenAIConfig{
			Endpoint:  cfg.Endpoint,
			Model:     cfg.Model,
			APIKeyEnv: cfg.APIKeyEnv,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown summarizer backend: %q", cfg.Backend)
	}
}

type Executor struct {
	Summarizer      Summarizer
	ExtractTimeout  time.Duration
	MergeTimeout    time.Duration
	MaxSummaryChars int

	templates *Templates
}

func NewExecutor(s Summarizer, cfg config.SummarizerConfig) (*Executor, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	return &Executor{
		Summarizer:      s,
		ExtractTimeout:  cfg.ExtractTimeout(),
		MergeTimeout:    cfg.MergeTimeout(),
		MaxSummaryChars: cfg.MaxSummaryChars,
		templates:       templates,
	}, nil
}

// Run selects the extraction template when prior is nil and the merge template otherwise.
func (e *Executor) Run(ctx context.Context, prior *string, newTurnsText string) (string, error) {
	if prior == nil {
		return e.Extract(ctx, "", newTurnsText)
	}
	return e.Merge(ctx, *prior, newTurnsText)
}

// Extract produces a handover document from the new turns only. compactionSummary
// is what the host's own compaction already preserved and may be empty.
func (e *Executor) Extract(ctx context.Context, compactionSummary, transcriptText string) (string, error) {
	prompt, err := e.templates.Extract.Render(ExtractData{
		CompactionSummary: truncateSummary(compactionSummary, e.MaxSummaryChars),
		Transcript:        transcriptText,
	})
	if err != nil {
		return "", err
	}

	return e.call(ctx, "extract", prompt, e.ExtractTimeout)
}

// Merge folds fragment into prior, letting the fragment win on conflicting current state.
func (e *Executor) Merge(ctx context.Context, prior, fragment string) (string, error) {
	prompt, err := e.templates.Merge.Render(MergeData{
		Existing: prior,
		Fragment: fragment,
	})
	if err != nil {
		return "", err
	}

	return e.call(ctx, "merge", prompt, e.MergeTimeout)
}

func (e *Executor) call(ctx context.Context, pass string, prompt string, timeout time.Duration) (string, error) {
	if e.Summarizer == nil {
		return "", fmt.Errorf("%s: %w: no summarizer configured", pass, ErrGenerationFailed)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	out, err := e.Summarizer.Summarize(ctx, prompt)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%s: %w: %w", pass, ErrGenerationFailed, ctxErr)
		}
		if errors.Is(err, ErrGenerationFailed) {
			return "", fmt.Errorf("%s: %w", pass, err)
		}
		return "", fmt.Errorf("%s: %w: %w", pass, ErrGenerationFailed, err)
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s: %w: %w", pass, ErrGenerationFailed, ctxErr)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%s: %w: empty output", pass, ErrGenerationFailed)
	}

	return out, nil
}

func truncateSummary(summary string, maxChars int) string {
	runes := []rune(summary)
	if maxChars <= 0 || len(runes) <= maxChars {
		return summary
	}
	return string(runes[:maxChars]) + "\n[...truncated...]"
}
