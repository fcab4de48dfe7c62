// Package pipeline drives a campaign brief through prompt building, image
// generation and download, one (product, ratio) unit at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/aspectratio"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/brief"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/image"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/prompt"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/storage"
)

// DefaultPacing is the pause between consecutive units.
const DefaultPacing = time.Second

// ProgressFunc receives one event per processed unit, including failed ones.
type ProgressFunc func(domain.Progress)

// Options are the per-run settings.
type Options struct {
	OutputDir string
	// Ratios are the requested "W:H" strings. Empty means every preset.
	Ratios []string
	// ExactRatios keeps unsupported ratios and requests an expanded size
	// instead of substituting the closest preset.
	ExactRatios  bool
	ModelVersion firefly.ModelVersion
}

// Summary describes a finished run.
type Summary struct {
	RunID     string
	Units     int
	Succeeded int
	Failed    int
	Files     []string
	// Approximations maps each substituted ratio to its preset.
	Approximations map[string]string
}

// Engine is safe to reuse across runs but not for concurrent runs.
type Engine struct {
	Prompts    prompt.Builder
	Images     image.Generator
	HTTPClient *http.Client
	Recorder   domain.AssetRecorder
	Clock      infra.Clock
	// Pacing is the pause between units. Zero selects DefaultPacing; use a
	// negative value to disable pacing.
	Pacing time.Duration
	Logger *infra.Logger
}

// Plan resolves the requested ratios into the ordered, de-duplicated list of
// ratio keys a run will process. Malformed ratios fail the whole call.
func Plan(ratios []string, exact bool) ([]aspectratio.Resolution, error) {
	if len(ratios) == 0 {
		ratios = aspectratio.Keys()
	}
	seen := make(map[string]struct{}, len(ratios))
	var out []aspectratio.Resolution
	for _, r := range ratios {
		res, err := aspectratio.Resolve(r, exact)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[res.Key]; dup {
			continue
		}
		seen[res.Key] = struct{}{}
		out = append(out, res)
	}
	return out, nil
}

// Run validates b, ensures the output root and processes every
// product × ratio unit in order. Unit failures are reported through
// onProgress and counted in the Summary; only validation, ratio parsing,
// output-root creation and cancellation fail the run.
func (e *Engine) Run(ctx context.Context, b *domain.CampaignBrief, opts Options, onProgress ProgressFunc) (Summary, error) {
	runID := uuid.NewString()
	summary := Summary{RunID: runID, Approximations: map[string]string{}}
	logger := infra.LoggerOrNop(e.Logger).With().Str("run_id", runID).Logger()

	if err := brief.Validate(b); err != nil {
		return summary, err
	}
	if e.Prompts == nil || e.Images == nil {
		return summary, errors.New("pipeline: engine is missing a prompt builder or image generator")
	}
	resolutions, err := Plan(opts.Ratios, opts.ExactRatios)
	if err != nil {
		return summary, err
	}
	for _, res := range resolutions {
		if res.Approximated {
			summary.Approximations[res.Requested] = res.Key
			logger.Warn().
				Str("requested", res.Requested).
				Str("using", res.Key).
				Msgf("aspect ratio %s is not supported, using closest supported ratio %s", res.Requested, res.Key)
		}
	}

	store, err := storage.NewFileStore(opts.OutputDir)
	if err != nil {
		return summary, err
	}
	downloader := &storage.Downloader{Client: e.HTTPClient, Store: store}

	summary.Units = len(b.Products) * len(resolutions)
	index := 0
	for _, product := range b.Products {
		for _, res := range resolutions {
			if index > 0 {
				if err := e.pace(ctx); err != nil {
					return summary, err
				}
			}
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			index++
			unit := domain.Unit{Product: product, Ratio: res.Key, RequestedRatio: res.Requested}
			unitLog := logger.With().
				Str("product", product.Name).
				Str("ratio", res.Key).
				Int("unit", index).
				Int("units", summary.Units).
				Logger()

			files, unitErr := e.processUnit(ctx, unitLog, runID, b, unit, res.Size, opts, downloader)
			if unitErr != nil {
				summary.Failed++
				unitLog.Error().Err(unitErr).Msg("unit failed")
			} else {
				summary.Succeeded++
				summary.Files = append(summary.Files, files...)
				unitLog.Info().Int("files", len(files)).Msg("unit complete")
			}
			if onProgress != nil {
				onProgress(domain.Progress{
					Index:   index,
					Total:   summary.Units,
					Product: product,
					Ratio:   res.Key,
					Files:   files,
					Err:     unitErr,
				})
			}
		}
	}
	return summary, nil
}

func (e *Engine) pace(ctx context.Context) error {
	d := e.Pacing
	if d == 0 {
		d = DefaultPacing
	}
	if d < 0 {
		return nil
	}
	clock := e.Clock
	if clock == nil {
		clock = infra.SystemClock{}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}

type downloadResult struct {
	asset domain.GeneratedAsset
	err   error
}

func (e *Engine) processUnit(ctx context.Context, logger zerolog.Logger, runID string, b *domain.CampaignBrief, unit domain.Unit, size aspectratio.Size, opts Options, downloader *storage.Downloader) ([]string, error) {
	text, err := e.Prompts.Build(ctx, unit.Product, b)
	if err != nil {
		return nil, fmt.Errorf("build prompt: %w", err)
	}
	logger.Debug().Str("prompt", text).Msg("generation prompt")

	result, err := e.Images.Generate(ctx, image.GenerateRequest{
		Prompt:       text,
		Ratio:        unit.Ratio,
		Size:         size,
		Locale:       b.TargetRegion,
		CutoutImage:  unit.Product.CutoutImage,
		ModelVersion: opts.ModelVersion,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Outputs) == 0 {
		return nil, &domain.ServiceError{Service: "firefly", Op: "job " + result.JobID, Message: "no outputs"}
	}

	results := make([]downloadResult, len(result.Outputs))
	var g errgroup.Group
	for i, out := range result.Outputs {
		g.Go(func() error {
			results[i] = e.download(ctx, downloader, runID, b, unit, result, out)
			return nil
		})
	}
	_ = g.Wait()

	var (
		files  []string
		assets []domain.GeneratedAsset
		errs   []error
	)
	for _, r := range results {
		if r.err != nil {
			logger.Error().Err(r.err).Msg("output not saved")
			errs = append(errs, r.err)
			continue
		}
		files = append(files, r.asset.Path)
		assets = append(assets, r.asset)
		logger.Debug().Str("path", r.asset.Path).Int64("bytes", r.asset.Bytes).Msg("image saved")
	}
	if len(files) == 0 {
		return nil, errors.Join(errs...)
	}
	if e.Recorder != nil {
		if err := e.Recorder.RecordAssets(ctx, assets); err != nil {
			logger.Warn().Err(err).Msg("asset ledger write failed")
		}
	}
	return files, nil
}

func (e *Engine) download(ctx context.Context, d *storage.Downloader, runID string, b *domain.CampaignBrief, unit domain.Unit, result *image.Result, out image.Output) downloadResult {
	if strings.TrimSpace(out.URL) == "" {
		return downloadResult{err: &domain.DownloadError{Index: out.Index}}
	}
	key := storage.AssetKey(b.Name, b.TargetRegion, unit.Product.Name, unit.Ratio, storage.SeedOrIndex(out.Seed, out.Index))
	path, n, err := d.Download(ctx, out.URL, key)
	if err != nil {
		return downloadResult{err: &domain.DownloadError{Index: out.Index, URL: out.URL, Path: key, Err: err}}
	}
	return downloadResult{asset: domain.GeneratedAsset{
		ID:           uuid.NewString(),
		RunID:        runID,
		JobID:        result.JobID,
		Kind:         domain.AssetKindImage,
		BriefName:    b.Name,
		TargetRegion: b.TargetRegion,
		ProductName:  unit.Product.Name,
		AspectRatio:  unit.Ratio,
		Seed:         out.Seed,
		SourceURL:    out.URL,
		Path:         path,
		Bytes:        n,
		Width:        result.Size.Width,
		Height:       result.Size.Height,
		CreatedAt:    time.Now().UTC(),
	}}
}
