package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/providers/firefly"
)

type modelsOptions struct {
	limit          string
	publishedState string
	sortBy         string
	baseModel      string
}

func newModelsCommand(root *rootOptions) *cobra.Command {
	opts := &modelsOptions{}
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the custom Firefly models available to the credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			client, err := newFireflyClient(cmd, cfg, &root.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if opts.baseModel != "" {
				id, err := client.ModelID(cmd.Context(), firefly.ModelVersion(opts.baseModel))
				if err != nil {
					return err
				}
				if id == "" {
					return fmt.Errorf("no custom model is based on %s", opts.baseModel)
				}
				fmt.Fprintln(out, id)
				return nil
			}

			models, err := client.ListCustomModels(cmd.Context(), firefly.ListModelsParams{
				SortBy:         opts.sortBy,
				Limit:          opts.limit,
				PublishedState: opts.publishedState,
			})
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ASSET ID\tNAME\tBASE MODEL\tSTATE")
			for _, m := range models.Models {
				base := ""
				if m.BaseModel != nil {
					base = m.BaseModel.Name
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.AssetID, m.DisplayName, base, m.PublishedState)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d of %d model(s)\n", len(models.Models), models.TotalCount)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.limit, "limit", "", "maximum number of models to return")
	cmd.Flags().StringVar(&opts.publishedState, "published-state", "", "filter by published state")
	cmd.Flags().StringVar(&opts.sortBy, "sort-by", "", "sort order, e.g. assetName")
	cmd.Flags().StringVar(&opts.baseModel, "base-model", "", "print the id of the first model built on this base model instead")
	return cmd
}

// newFireflyClient wires the IMS token source and the Firefly client from
// cfg. The token source lives as long as the command context.
func newFireflyClient(cmd *cobra.Command, cfg *infra.Config, logger *infra.Logger) (*firefly.Client, error) {
	httpClient := infra.NewHTTPClient(cfg.HTTPTimeout)
	tokens, err := firefly.NewTokenSource(cmd.Context(), firefly.Credentials{
		ClientID:     cfg.FireflyClientID,
		ClientSecret: cfg.FireflyClientSecret,
		TokenURL:     cfg.FireflyTokenURL,
		Scopes:       cfg.Scopes(),
	}, httpClient)
	if err != nil {
		return nil, err
	}
	return firefly.NewClient(firefly.Options{
		BaseURL:     cfg.FireflyBaseURL,
		ClientID:    cfg.FireflyClientID,
		TokenSource: tokens,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
}
