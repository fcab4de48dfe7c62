package image

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/aspectratio"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
)

// DefaultVariations is the number of outputs requested per job.
const DefaultVariations = 3

// FireflyAPI is the subset of *firefly.Client used for generation.
type FireflyAPI interface {
	GenerateImagesAsync(ctx context.Context, req firefly.GenerateImagesRequest, version firefly.ModelVersion) (*firefly.AsyncAccepted, error)
	GenerateObjectCompositeAsync(ctx context.Context, req firefly.ObjectCompositeRequest) (*firefly.AsyncAccepted, error)
	Upload(ctx context.Context, r io.Reader, contentType string) (string, error)
}

// Awaiter blocks until a job is terminal.
type Awaiter interface {
	Await(ctx context.Context, jobID string) (*firefly.JobResult, error)
}

// FireflyGenerator submits text-to-image jobs, or object-composite jobs for
// products with a cutout image, and waits for them to finish.
type FireflyGenerator struct {
	API        FireflyAPI
	Poller     Awaiter
	Variations int
	Logger     *infra.Logger
}

// Generate returns the outputs of a succeeded job. Non-succeeded terminal
// states and empty output lists are *domain.ServiceError values.
func (g *FireflyGenerator) Generate(ctx context.Context, req GenerateRequest) (*Result, error) {
	if g.API == nil || g.Poller == nil {
		return nil, errors.New("image: generator is not configured")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("image: prompt is required")
	}
	var (
		accepted *firefly.AsyncAccepted
		size     aspectratio.Size
		err      error
	)
	composite := req.CutoutImage != ""
	if composite {
		accepted, size, err = g.submitObjectComposite(ctx, req)
	} else {
		accepted, size, err = g.submitTextToImage(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	logger := infra.LoggerOrNop(g.Logger)
	logger.Debug().
		Str("job_id", accepted.JobID).
		Str("ratio", req.Ratio).
		Bool("composite", composite).
		Msg("awaiting job")

	jobResult, err := g.Poller.Await(ctx, accepted.JobID)
	if err != nil {
		return nil, err
	}
	if err := firefly.CheckResult(jobResult); err != nil {
		return nil, err
	}

	result := &Result{JobID: accepted.JobID, Composite: composite, Size: size}
	for i, out := range jobResult.Outputs() {
		result.Outputs = append(result.Outputs, Output{
			Index: i,
			URL:   strings.TrimSpace(out.Image.URL),
			Seed:  out.Seed,
		})
	}
	return result, nil
}

func (g *FireflyGenerator) submitTextToImage(ctx context.Context, req GenerateRequest) (*firefly.AsyncAccepted, aspectratio.Size, error) {
	size := req.Size
	if size.Width == 0 || size.Height == 0 {
		var err error
		if size, err = aspectratio.ExpandedSize(req.Ratio); err != nil {
			return nil, size, err
		}
	}
	accepted, err := g.API.GenerateImagesAsync(ctx, firefly.GenerateImagesRequest{
		Prompt:                  req.Prompt,
		ContentClass:            firefly.ContentClassPhoto,
		NumVariations:           g.variations(),
		Size:                    &firefly.Size{Width: size.Width, Height: size.Height},
		PromptBiasingLocaleCode: req.Locale,
	}, req.ModelVersion)
	return accepted, size, err
}

func (g *FireflyGenerator) submitObjectComposite(ctx context.Context, req GenerateRequest) (*firefly.AsyncAccepted, aspectratio.Size, error) {
	size, ok := aspectratio.SizeOf(req.Ratio)
	if !ok {
		suggested, err := aspectratio.Approximate(req.Ratio)
		if err != nil {
			return nil, size, err
		}
		suggestedSize, _ := aspectratio.SizeOf(suggested)
		return nil, size, &domain.UnsupportedRatioError{
			Ratio:     req.Ratio,
			Suggested: suggested,
			Width:     suggestedSize.Width,
			Height:    suggestedSize.Height,
		}
	}

	f, err := os.Open(req.CutoutImage)
	if err != nil {
		return nil, size, fmt.Errorf("image: open cutout: %w", err)
	}
	defer f.Close()
	uploadID, err := g.API.Upload(ctx, f, contentTypeFor(req.CutoutImage))
	if err != nil {
		return nil, size, err
	}

	accepted, err := g.API.GenerateObjectCompositeAsync(ctx, firefly.ObjectCompositeRequest{
		Prompt:        req.Prompt,
		Image:         firefly.InputImage{Source: firefly.BinaryInput{UploadID: uploadID}},
		ContentClass:  firefly.ContentClassPhoto,
		NumVariations: g.variations(),
		Placement:     firefly.CenterPlacement(),
		Size:          &firefly.Size{Width: size.Width, Height: size.Height},
	})
	return accepted, size, err
}

func (g *FireflyGenerator) variations() int {
	if g.Variations > 0 {
		return g.Variations
	}
	return DefaultVariations
}

func contentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/png"
}

var _ Generator = (*FireflyGenerator)(nil)
