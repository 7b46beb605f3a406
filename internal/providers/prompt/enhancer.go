package prompt

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrEnhancementUnavailable signals that the language-model call failed or
// timed out. Callers must fall back to the raw prompt and proceed with
// generation; enhancement is never allowed to block a request.
var ErrEnhancementUnavailable = errors.New("prompt enhancement unavailable")

// Enhancer rewrites a short user prompt into a richer, model-ready
// description.
type Enhancer interface {
	Enhance(ctx context.Context, raw string) (string, error)
}

const (
	staticProviderName = "static"
	openAIProviderName = "openai"

	// Prompts shorter than this get quality descriptors appended by the
	// static enhancer.
	shortPromptThreshold = 50
)

// StaticEnhancer is a deterministic local enhancer used as the fallback when
// no language-model provider is configured or reachable.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

// Enhance appends quality descriptors to short prompts and leaves long
// prompts untouched. A style hint embedded as "style: x" is title-cased.
func (s *StaticEnhancer) Enhance(ctx context.Context, raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("prompt is empty")
	}
	if len(trimmed) >= shortPromptThreshold {
		return trimmed, nil
	}
	c := cases.Title(language.Und)
	words := strings.Fields(trimmed)
	if len(words) > 0 {
		words[0] = c.String(words[0])
	}
	return strings.Join(words, " ") + ", high quality, detailed, professional", nil
}

var _ Enhancer = (*StaticEnhancer)(nil)
