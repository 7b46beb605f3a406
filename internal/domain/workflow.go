package domain

import (
	"errors"
	"fmt"
	"time"
)

// StepAction enumerates workflow step kinds.
type StepAction string

const (
	ActionGenerate         StepAction = "generate"
	ActionUpscale          StepAction = "upscale"
	ActionRemoveBackground StepAction = "remove_background"
	ActionRelight          StepAction = "relight"
	ActionStyleTransfer    StepAction = "style_transfer"
)

// GenerateParams configures the leading generation step of a workflow.
type GenerateParams struct {
	Model Model  `json:"model,omitempty"`
	Style string `json:"style,omitempty"`
}

// UpscaleParams configures an upscale step.
type UpscaleParams struct {
	Factor int `json:"factor" validate:"omitempty,oneof=2 4 8"`
}

// RelightParams configures a relight step.
type RelightParams struct {
	Style string `json:"style,omitempty"`
}

// StyleTransferParams configures a style-transfer step.
type StyleTransferParams struct {
	StyleURL string `json:"style_url" validate:"required,url"`
}

// Step is one entry of a workflow template. Exactly the params struct
// matching Action may be set; remove_background carries none.
type Step struct {
	Action        StepAction           `json:"action"                   validate:"required,oneof=generate upscale remove_background relight style_transfer"`
	Generate      *GenerateParams      `json:"generate,omitempty"`
	Upscale       *UpscaleParams       `json:"upscale,omitempty"`
	Relight       *RelightParams       `json:"relight,omitempty"`
	StyleTransfer *StyleTransferParams `json:"style_transfer,omitempty"`
}

// Workflow is a named, ordered template of one generation step followed by
// zero or more post-processing steps. Custom templates are replaced
// wholesale on edit, never mutated in place.
type Workflow struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"        validate:"required,min=3"`
	Description string    `json:"description"`
	Steps       []Step    `json:"steps"       validate:"required,min=1,dive"`
	IsCustom    bool      `json:"is_custom"`
	CreatedAt   time.Time `json:"created_at"`
}

var (
	errNoSteps          = errors.New("workflow needs at least one step")
	errFirstNotGenerate = errors.New("first step must be a generate action")
)

// Validate enforces the structural invariants the struct tags cannot
// express: step 0 generates, later steps post-process, and each step
// carries only the params matching its action.
func (w *Workflow) Validate() error {
	if len(w.Steps) == 0 {
		return errNoSteps
	}
	if w.Steps[0].Action != ActionGenerate {
		return errFirstNotGenerate
	}
	for i, step := range w.Steps {
		if i > 0 && step.Action == ActionGenerate {
			return fmt.Errorf("step %d: generate is only valid as the first step", i)
		}
		if err := step.validateParams(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

func (s Step) validateParams() error {
	if s.Generate != nil && s.Action != ActionGenerate {
		return errors.New("generate params on a non-generate step")
	}
	if s.Upscale != nil && s.Action != ActionUpscale {
		return errors.New("upscale params on a non-upscale step")
	}
	if s.Relight != nil && s.Action != ActionRelight {
		return errors.New("relight params on a non-relight step")
	}
	if s.StyleTransfer != nil && s.Action != ActionStyleTransfer {
		return errors.New("style_transfer params on a non-style-transfer step")
	}
	if s.Action == ActionStyleTransfer && s.StyleTransfer == nil {
		return errors.New("style_transfer step requires params")
	}
	return nil
}
