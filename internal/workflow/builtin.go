package workflow

import "orchestrator/internal/domain"

// Builtins returns the workflow templates seeded at startup. They are
// read-only: the replace path rejects edits to any of them.
func Builtins() []domain.Workflow {
	return []domain.Workflow{
		{
			ID:          "professional_headshot",
			Name:        "Professional Headshot",
			Description: "Portrait generation with studio relighting and a 2x upscale.",
			Steps: []domain.Step{
				{Action: domain.ActionGenerate, Generate: &domain.GenerateParams{Model: domain.ModelMystic}},
				{Action: domain.ActionRelight, Relight: &domain.RelightParams{Style: "professional"}},
				{Action: domain.ActionUpscale, Upscale: &domain.UpscaleParams{Factor: 2}},
			},
		},
		{
			ID:          "product_photography",
			Name:        "Product Photography",
			Description: "Clean product shot on a transparent background, upscaled for print.",
			Steps: []domain.Step{
				{Action: domain.ActionGenerate, Generate: &domain.GenerateParams{Model: domain.ModelImagen3}},
				{Action: domain.ActionRemoveBackground},
				{Action: domain.ActionUpscale, Upscale: &domain.UpscaleParams{Factor: 4}},
			},
		},
		{
			ID:          "marketing_materials",
			Name:        "Marketing Materials",
			Description: "Stylized campaign artwork with dramatic relighting.",
			Steps: []domain.Step{
				{Action: domain.ActionGenerate, Generate: &domain.GenerateParams{Model: domain.ModelFluxDev}},
				{Action: domain.ActionRelight, Relight: &domain.RelightParams{Style: "cinematic"}},
				{Action: domain.ActionUpscale, Upscale: &domain.UpscaleParams{Factor: 2}},
			},
		},
	}
}

// EstimateCostCents sums the per-step accounting cost of a template.
func EstimateCostCents(wf *domain.Workflow) int {
	total := 0
	for _, step := range wf.Steps {
		total += domain.ActionCostCents(step.Action)
	}
	return total
}
