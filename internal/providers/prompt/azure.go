package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
)

const azureServiceName = "azure-openai"

const sceneSystemInstruction = "You turn marketing briefs into explicit, literal, and detailed scene plans for object composition of beverage cutouts. " +
	"The scene plan should be detailed enough to be used as a prompt for a photo generation model; it must not mention the product itself, only the scene and the props. " +
	"Bias the scene plan towards the provided target region, which is a hyphen-separated string combining the ISO 639-1 language code and the ISO 3166-1 region (e.g., en-US). " +
	"The image generation prompt should be a single sentence that describes the image and is no longer than 1024 characters. " +
	"Only output JSON that strictly matches the provided schema. The canvas origin is the center; units are centimeters."

// AzureOptions configures a ScenePlanner.
type AzureOptions struct {
	Endpoint   string
	APIKey     string
	APIVersion string
	Deployment string
	Model      string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// ScenePlanner asks an Azure OpenAI chat deployment for a ScenePlan.
type ScenePlanner struct {
	endpoint   string
	apiKey     string
	apiVersion string
	deployment string
	model      string
	client     *http.Client
	logger     zerolog.Logger
}

type chatRequest struct {
	Model          string         `json:"model,omitempty"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string     `json:"type"`
	JSONSchema jsonSchema `json:"json_schema"`
}

type jsonSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type azureErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewScenePlanner validates the connection settings.
func NewScenePlanner(opts AzureOptions) (*ScenePlanner, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		return nil, errors.New("azure endpoint is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("azure api key is required")
	}
	if strings.TrimSpace(opts.Deployment) == "" {
		return nil, errors.New("azure deployment is required")
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = infra.DefaultAzureAPIVersion
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ScenePlanner{
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(opts.APIKey),
		apiVersion: apiVersion,
		deployment: strings.TrimSpace(opts.Deployment),
		model:      strings.TrimSpace(opts.Model),
		client:     client,
		logger:     infra.LoggerOrNop(opts.Logger),
	}, nil
}

// Plan requests one scene plan. Every failure is a *domain.ServiceError; no
// substitute prompt is produced.
func (s *ScenePlanner) Plan(ctx context.Context, product domain.Product, brief *domain.CampaignBrief) (*ScenePlan, error) {
	if brief == nil {
		return nil, errors.New("prompt: brief is required")
	}
	payload := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: sceneSystemInstruction},
			{Role: "user", Content: sceneUserMessage(product, brief)},
		},
		ResponseFormat: responseFormat{
			Type: "json_schema",
			JSONSchema: jsonSchema{
				Name:   "ScenePlan",
				Schema: scenePlanSchema,
				Strict: true,
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, s.fail("encode request", err)
	}
	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		s.endpoint, url.PathEscape(s.deployment), url.QueryEscape(s.apiVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, s.fail("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.fail("http request", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, s.fail("read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		svcErr := &domain.ServiceError{Service: azureServiceName, Op: "scene plan", Status: strconv.Itoa(resp.StatusCode)}
		var detail azureErrorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			svcErr.Code = detail.Error.Code
			svcErr.Message = detail.Error.Message
		} else {
			svcErr.Message = strings.TrimSpace(string(raw))
		}
		return nil, svcErr
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, s.fail("decode response", err)
	}
	if len(out.Choices) == 0 {
		return nil, s.fail("empty choices", errors.New("no choices"))
	}
	msg := out.Choices[0].Message
	if msg.Refusal != "" {
		return nil, &domain.ServiceError{Service: azureServiceName, Op: "scene plan", Code: "refusal", Message: msg.Refusal}
	}
	plan, err := decodeScenePlan(msg.Content)
	if err != nil {
		return nil, s.fail("parse scene plan", err)
	}
	s.logger.Debug().
		Str("product", product.Name).
		Str("concept", plan.Concept).
		Str("camera_angle", string(plan.Camera.Angle)).
		Strs("props", plan.Props).
		Msg("scene plan received")
	return plan, nil
}

func (s *ScenePlanner) fail(reason string, err error) error {
	return &domain.ServiceError{Service: azureServiceName, Op: "scene plan", Message: reason, Err: err}
}

func sceneUserMessage(product domain.Product, brief *domain.CampaignBrief) string {
	return fmt.Sprintf("BRIEF:\n%s\nConstraints: social-first asset, exclude glassware and alcohol cues.\nProduct Name: %s\nProduct Description: %s\n target region: %s",
		brief.CampaignMessage, product.Name, product.Description, brief.TargetRegion)
}
