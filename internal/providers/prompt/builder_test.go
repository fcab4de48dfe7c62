package prompt

import (
	"context"
	"errors"
	"testing"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
)

type countingPlanner struct {
	calls int
	err   error
}

func (p *countingPlanner) Plan(_ context.Context, product domain.Product, _ *domain.CampaignBrief) (*ScenePlan, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &ScenePlan{ImageGenerationPrompt: "scene for " + product.Name, Camera: Camera{Angle: AngleEye}}, nil
}

func TestTemplatePrompt(t *testing.T) {
	got := TemplatePrompt(domain.Product{Name: "iced-tea", Description: "Unsweetened black tea"}, testBrief())
	want := `A promotional image for a "iced-tea" (Unsweetened black tea) targeting young adults. The message is: "Stay cool".`
	if got != want {
		t.Fatalf("TemplatePrompt = %q, want %q", got, want)
	}
}

func TestSceneBuilderUsesPlanPrompt(t *testing.T) {
	planner := &countingPlanner{}
	b := &SceneBuilder{Planner: planner}
	got, err := b.Build(context.Background(), domain.Product{Name: "can"}, testBrief())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if got != "scene for can" {
		t.Fatalf("Build = %q", got)
	}
}

func TestSceneBuilderPropagatesErrors(t *testing.T) {
	boom := &domain.ServiceError{Service: "azure-openai", Message: "down"}
	b := &SceneBuilder{Planner: &countingPlanner{err: boom}}
	if _, err := b.Build(context.Background(), domain.Product{Name: "can"}, testBrief()); !errors.Is(err, domain.ErrExternalService) {
		t.Fatalf("error = %v, want service error", err)
	}
}

func TestCachingBuilderMemoisesPerProduct(t *testing.T) {
	planner := &countingPlanner{}
	b := NewCachingBuilder(&SceneBuilder{Planner: planner})
	ctx := context.Background()
	for _, name := range []string{"Can", "can", "CAN", "bottle"} {
		if _, err := b.Build(ctx, domain.Product{Name: name}, testBrief()); err != nil {
			t.Fatalf("Build(%s) returned error: %v", name, err)
		}
	}
	if planner.calls != 2 {
		t.Fatalf("planner calls = %d, want 2", planner.calls)
	}
}

func TestCachingBuilderDoesNotCacheErrors(t *testing.T) {
	planner := &countingPlanner{err: errors.New("boom")}
	b := NewCachingBuilder(&SceneBuilder{Planner: planner})
	for i := 0; i < 2; i++ {
		if _, err := b.Build(context.Background(), domain.Product{Name: "can"}, testBrief()); err == nil {
			t.Fatal("expected error")
		}
	}
	if planner.calls != 2 {
		t.Fatalf("planner calls = %d, want 2", planner.calls)
	}
}
