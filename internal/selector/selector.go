// Package selector maps an enhanced prompt and user requirements to a
// concrete generation model.
package selector

import (
	"strings"

	"orchestrator/internal/domain"
)

// Quality is the user-declared quality requirement.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityStandard Quality = "standard"
	QualityHigh     Quality = "high"
)

// Style is the user-declared style requirement.
type Style string

const (
	StyleAuto           Style = "auto"
	StylePhotorealistic Style = "photorealistic"
	StyleArtistic       Style = "artistic"
)

// Requirements carries the declared preferences accompanying a prompt.
type Requirements struct {
	Quality Quality
	Style   Style
}

// Rule inspects the prompt and requirements and either claims the request
// by returning a model, or passes by returning false.
type Rule struct {
	Name  string
	Match func(prompt string, req Requirements) (domain.Model, bool)
}

// Selector evaluates an ordered rule list top to bottom; the first matching
// rule wins and the fallback model covers everything else. Selection is
// pure and total: the same input always yields the same model and there is
// no failure path.
type Selector struct {
	rules    []Rule
	fallback domain.Model
}

// New builds a selector from an ordered rule list. A nil list gets the
// default rules.
func New(rules []Rule, fallback domain.Model) *Selector {
	if rules == nil {
		rules = DefaultRules()
	}
	if !fallback.Valid() {
		fallback = domain.ModelMystic
	}
	return &Selector{rules: rules, fallback: fallback}
}

// Select returns the model for the given prompt and requirements.
func (s *Selector) Select(prompt string, req Requirements) domain.Model {
	for _, rule := range s.rules {
		if model, ok := rule.Match(prompt, req); ok {
			return model
		}
	}
	return s.fallback
}

var (
	photoKeywords = []string{"professional", "headshot", "portrait", "product", "photography", "realistic", "photo"}
	artKeywords   = []string{"artistic", "creative", "abstract", "stylized", "concept", "illustration", "painting"}
	fastKeywords  = []string{"simple", "quick", "basic", "draft", "sketch"}
)

// DefaultRules returns the standard ordered rule list: explicit style
// declarations first, then prompt keyword heuristics, then the low-quality
// shortcut.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "declared_photorealistic",
			Match: func(_ string, req Requirements) (domain.Model, bool) {
				if req.Style == StylePhotorealistic {
					return domain.ModelImagen3, true
				}
				return "", false
			},
		},
		{
			Name: "declared_artistic",
			Match: func(_ string, req Requirements) (domain.Model, bool) {
				if req.Style == StyleArtistic {
					return domain.ModelFluxDev, true
				}
				return "", false
			},
		},
		{
			Name: "photo_keywords",
			Match: func(prompt string, _ Requirements) (domain.Model, bool) {
				if containsAny(prompt, photoKeywords) {
					return domain.ModelImagen3, true
				}
				return "", false
			},
		},
		{
			Name: "art_keywords",
			Match: func(prompt string, _ Requirements) (domain.Model, bool) {
				if containsAny(prompt, artKeywords) {
					return domain.ModelFluxDev, true
				}
				return "", false
			},
		},
		{
			Name: "low_quality_fast",
			Match: func(prompt string, req Requirements) (domain.Model, bool) {
				if req.Quality == QualityLow || containsAny(prompt, fastKeywords) {
					return domain.ModelClassicFast, true
				}
				return "", false
			},
		},
	}
}

func containsAny(prompt string, keywords []string) bool {
	lowered := strings.ToLower(prompt)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
