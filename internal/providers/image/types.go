// Package image turns a prompt and an aspect ratio into generated image
// outputs.
package image

import (
	"context"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/aspectratio"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
)

// GenerateRequest describes one generation unit.
type GenerateRequest struct {
	Prompt string
	// Ratio is the resolved ratio key. Composite jobs require a preset key.
	Ratio string
	// Size overrides the preset size for Ratio when non-zero.
	Size aspectratio.Size
	// Locale biases text-to-image prompts, e.g. "en-US".
	Locale string
	// CutoutImage selects the composite path when set.
	CutoutImage  string
	ModelVersion firefly.ModelVersion
}

// Output is one generated variation. URL may be empty when the service
// returned an output without an image link.
type Output struct {
	Index int
	URL   string
	Seed  int64
}

// Result is the terminal, successful outcome of a job.
type Result struct {
	JobID     string
	Composite bool
	Size      aspectratio.Size
	Outputs   []Output
}

// Generator is the contract the pipeline depends on.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}
