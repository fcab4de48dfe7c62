package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/adapter/repo"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/aspectratio"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/brief"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/pipeline"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/image"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/prompt"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/storage"
	"github.com/ahmed-musallam/creative-automation-pipeline/pkg/zip"
)

type generateOptions struct {
	inputDir        string
	outputDir       string
	ratios          []string
	scenePlan       bool
	cacheScenePlans bool
	exactRatios     bool
	modelVersion    string
	archive         bool
	failOnUnitError bool
}

func newGenerateCommand(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate <campaign-brief>",
		Short: "Generate creative assets based on a campaign brief",
		Long: `Generate one job per product and aspect ratio and download every output to
<output>/<brief>/<region>/<product>/<ratio>/. Unsupported ratios are replaced
by the closest supported one unless --exact-ratios is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, root, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.inputDir, "input", "i", "inputs", "directory that relative cutout image paths are resolved against")
	f.StringVarP(&opts.outputDir, "output", "o", "outputs", "output directory")
	f.StringSliceVarP(&opts.ratios, "aspect-ratios", "r", []string{"1:1", "16:9"}, "comma separated aspect ratios, e.g. 1:1,16:9")
	f.BoolVar(&opts.scenePlan, "scene-plan", false, "plan each scene with Azure OpenAI before generating")
	f.BoolVar(&opts.cacheScenePlans, "cache-scene-plans", false, "reuse one scene plan for every ratio of a product")
	f.BoolVar(&opts.exactRatios, "exact-ratios", false, "request unsupported ratios at an expanded size instead of approximating them")
	f.StringVar(&opts.modelVersion, "model-version", "", "Firefly model version header, e.g. image4_standard")
	f.BoolVar(&opts.archive, "archive", false, "zip the brief output tree into <output>/<brief>.zip")
	f.BoolVar(&opts.failOnUnitError, "fail-on-unit-error", false, "exit with status 2 when any unit fails")
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions, briefPath string) error {
	ctx := cmd.Context()
	logger := root.logger
	out := cmd.OutOrStdout()

	ratios, err := parseRatios(opts.ratios)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts.scenePlan)
	if err != nil {
		return err
	}
	version := firefly.ModelVersion(opts.modelVersion)
	if version == "" {
		version = firefly.ModelVersion(cfg.FireflyModelVersion)
	}
	if !version.Valid() {
		return fmt.Errorf("unknown model version %q, allowed values are: %s", version, joinVersions())
	}

	b, err := brief.Load(briefPath, opts.inputDir)
	if err != nil {
		return err
	}
	if err := brief.Validate(b); err != nil {
		return err
	}

	client, err := newFireflyClient(cmd, cfg, &logger)
	if err != nil {
		return err
	}
	builder, err := newPromptBuilder(cfg, opts, &logger)
	if err != nil {
		return err
	}
	recorder, closeLedger, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLedger()

	pacing := cfg.Pacing
	if pacing == 0 {
		pacing = -1
	}
	engine := &pipeline.Engine{
		Prompts: builder,
		Images: &image.FireflyGenerator{
			API: client,
			Poller: &firefly.Poller{
				Status:   client,
				Interval: cfg.PollInterval,
				MaxWait:  cfg.PollMaxWait,
				Logger:   &logger,
			},
			Logger: &logger,
		},
		HTTPClient: infra.NewHTTPClient(cfg.HTTPTimeout),
		Recorder:   recorder,
		Pacing:     pacing,
		Logger:     &logger,
	}

	summary, err := engine.Run(ctx, b, pipeline.Options{
		OutputDir:    opts.outputDir,
		Ratios:       ratios,
		ExactRatios:  opts.exactRatios,
		ModelVersion: version,
	}, printProgress(out))
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Generated %d file(s) for %d of %d unit(s), saved to %s\n",
		len(summary.Files), summary.Succeeded, summary.Units, opts.outputDir)

	if opts.archive {
		dest := filepath.Join(opts.outputDir, storage.Segment(b.Name)+".zip")
		n, err := zip.ArchiveDir(ctx, filepath.Join(opts.outputDir, storage.Segment(b.Name)), dest)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Archived %d file(s) to %s\n", n, dest)
	}

	if summary.Failed > 0 {
		logger.Warn().Int("failed", summary.Failed).Str("run_id", summary.RunID).Msg("run finished with failed units")
		if opts.failOnUnitError {
			return &ExitError{Code: 2, Err: fmt.Errorf("%w: %d of %d", ErrUnitsFailed, summary.Failed, summary.Units)}
		}
	}
	return nil
}

// parseRatios trims the flag values and rejects the whole list when any
// entry is malformed.
func parseRatios(values []string) ([]string, error) {
	var (
		ratios  []string
		invalid []string
	)
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, _, err := aspectratio.Parse(v); err != nil {
			invalid = append(invalid, v)
			continue
		}
		ratios = append(ratios, v)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid aspect ratio(s): %s. Each must be in the format number:number (e.g. 1:1, 16:9): %w",
			strings.Join(invalid, ", "), &domain.FormatError{Input: invalid[0]})
	}
	if len(ratios) == 0 {
		return nil, errors.New("at least one aspect ratio is required")
	}
	return ratios, nil
}

func newPromptBuilder(cfg *infra.Config, opts *generateOptions, logger *infra.Logger) (prompt.Builder, error) {
	if !opts.scenePlan {
		return prompt.TemplateBuilder{}, nil
	}
	planner, err := prompt.NewScenePlanner(prompt.AzureOptions{
		Endpoint:   cfg.AzureEndpoint,
		APIKey:     cfg.AzureAPIKey,
		APIVersion: cfg.AzureAPIVersion,
		Deployment: cfg.AzureDeployment,
		Model:      cfg.AzureModelName,
		HTTPClient: infra.NewHTTPClient(cfg.HTTPTimeout),
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	var builder prompt.Builder = &prompt.SceneBuilder{Planner: planner, Logger: logger}
	if opts.cacheScenePlans {
		builder = prompt.NewCachingBuilder(builder)
	}
	return builder, nil
}

// newRecorder opens the asset ledger when DATABASE_URL is set. Without it
// the run records nothing.
func newRecorder(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.AssetRecorder, func(), error) {
	pool, err := infra.NewDBPool(ctx, cfg)
	if errors.Is(err, infra.ErrNoDatabase) {
		return domain.NopRecorder{}, func() {}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	ledger := repo.NewAssetLedger(infra.NewSQLRunner(pool, logger))
	if err := ledger.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	logger.Info().Msg("recording generated assets to the database ledger")
	return ledger, pool.Close, nil
}

func printProgress(w io.Writer) pipeline.ProgressFunc {
	return func(p domain.Progress) {
		if p.Err != nil {
			fmt.Fprintf(w, "[%d/%d] Failed to generate creative assets for Product: %s in %s ratio: %v\n",
				p.Index, p.Total, p.Product.Name, p.Ratio, p.Err)
			return
		}
		fmt.Fprintf(w, "[%d/%d] Generated creative assets for Product: %s in %s ratio (%d file(s))\n",
			p.Index, p.Total, p.Product.Name, p.Ratio, len(p.Files))
	}
}

func joinVersions() string {
	names := make([]string, len(firefly.ModelVersions))
	for i, v := range firefly.ModelVersions {
		names[i] = string(v)
	}
	return strings.Join(names, ", ")
}
