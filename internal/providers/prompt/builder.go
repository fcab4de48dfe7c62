// Package prompt produces the text prompt sent to the image service, either
// from a fixed template or from a language-model scene plan.
package prompt

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/text/cases"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
)

// Builder returns the image prompt for one product of a brief.
type Builder interface {
	Build(ctx context.Context, product domain.Product, brief *domain.CampaignBrief) (string, error)
}

// Planner returns a scene plan for one product of a brief.
type Planner interface {
	Plan(ctx context.Context, product domain.Product, brief *domain.CampaignBrief) (*ScenePlan, error)
}

// TemplateBuilder fills the fixed promotional template. It never fails.
type TemplateBuilder struct{}

func (TemplateBuilder) Build(_ context.Context, product domain.Product, brief *domain.CampaignBrief) (string, error) {
	return TemplatePrompt(product, brief), nil
}

// TemplatePrompt is the direct prompt used when scene planning is off.
func TemplatePrompt(product domain.Product, brief *domain.CampaignBrief) string {
	return fmt.Sprintf(`A promotional image for a "%s" (%s) targeting %s. The message is: "%s".`,
		product.Name, product.Description, brief.TargetAudience, brief.CampaignMessage)
}

// SceneBuilder uses the scene plan's image_generation_prompt.
type SceneBuilder struct {
	Planner Planner
	Logger  *infra.Logger
}

func (b *SceneBuilder) Build(ctx context.Context, product domain.Product, brief *domain.CampaignBrief) (string, error) {
	plan, err := b.Planner.Plan(ctx, product, brief)
	if err != nil {
		return "", err
	}
	logger := infra.LoggerOrNop(b.Logger)
	logger.Debug().Str("product", product.Name).Str("prompt", plan.ImageGenerationPrompt).Msg("scene prompt")
	return plan.ImageGenerationPrompt, nil
}

// CachingBuilder memoises the wrapped builder per product name (case
// folded), so every ratio of a product shares one prompt. Errors are not
// cached.
type CachingBuilder struct {
	Next Builder

	mu      sync.Mutex
	prompts map[string]string
}

func NewCachingBuilder(next Builder) *CachingBuilder {
	return &CachingBuilder{Next: next, prompts: make(map[string]string)}
}

func (c *CachingBuilder) Build(ctx context.Context, product domain.Product, brief *domain.CampaignBrief) (string, error) {
	key := cases.Fold().String(product.Name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prompts == nil {
		c.prompts = make(map[string]string)
	}
	if p, ok := c.prompts[key]; ok {
		return p, nil
	}
	p, err := c.Next.Build(ctx, product, brief)
	if err != nil {
		return "", err
	}
	c.prompts[key] = p
	return p, nil
}

var (
	_ Builder = TemplateBuilder{}
	_ Builder = (*SceneBuilder)(nil)
	_ Builder = (*CachingBuilder)(nil)
	_ Planner = (*ScenePlanner)(nil)
)
