package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MaxPromptLength caps image_generation_prompt, matching the image service's
// prompt limit.
const MaxPromptLength = 1024

// CameraAngle is the vantage point of a planned scene.
type CameraAngle string

const (
	AngleEye          CameraAngle = "eye"
	AngleLow          CameraAngle = "low"
	AngleHigh         CameraAngle = "high"
	AngleTop          CameraAngle = "top"
	AngleThreeQuarter CameraAngle = "three-quarter"
)

var cameraAngles = []CameraAngle{AngleEye, AngleLow, AngleHigh, AngleTop, AngleThreeQuarter}

type Camera struct {
	Angle         CameraAngle `json:"angle"`
	FocalLengthMM float64     `json:"focal_length_mm"`
	FOVDeg        float64     `json:"fov_deg"`
}

// ScenePlan is the structured scene description returned by the language
// model. Only ImageGenerationPrompt feeds the image service; the other fields
// are logged for review.
type ScenePlan struct {
	Concept               string   `json:"concept"`
	Environment           string   `json:"environment"`
	Surface               string   `json:"surface"`
	ColorGrade            string   `json:"color_grade"`
	Background            string   `json:"background"`
	Lighting              string   `json:"lighting"`
	Camera                Camera   `json:"camera"`
	Props                 []string `json:"props"`
	NegativeCues          []string `json:"negative_cues"`
	ComplianceNotes       string   `json:"compliance_notes"`
	Rationale             string   `json:"rationale"`
	ImageGenerationPrompt string   `json:"image_generation_prompt"`
}

var requiredPlanFields = []string{
	"concept", "environment", "surface", "color_grade", "lighting", "background",
	"camera", "props", "negative_cues", "compliance_notes", "rationale",
	"image_generation_prompt",
}

var requiredCameraFields = []string{"angle", "focal_length_mm", "fov_deg"}

// scenePlanSchema is sent as the strict json_schema response format.
var scenePlanSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"concept":     map[string]any{"type": "string", "description": "Concept description"},
		"environment": map[string]any{"type": "string", "description": "Environment description"},
		"surface":     map[string]any{"type": "string", "description": "Surface description"},
		"color_grade": map[string]any{"type": "string", "description": "Color grade description"},
		"background":  map[string]any{"type": "string", "description": "Backdrop description"},
		"lighting":    map[string]any{"type": "string", "description": "Lighting description"},
		"camera": map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"angle":           map[string]any{"type": "string", "enum": cameraAngles},
				"focal_length_mm": map[string]any{"type": "number"},
				"fov_deg":         map[string]any{"type": "number"},
			},
			"required": requiredCameraFields,
		},
		"props":                   map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"negative_cues":           map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		"compliance_notes":        map[string]any{"type": "string"},
		"rationale":               map[string]any{"type": "string"},
		"image_generation_prompt": map[string]any{"type": "string", "maxLength": MaxPromptLength},
	},
	"required": requiredPlanFields,
}

// decodeScenePlan parses a model reply and enforces the schema constraints the
// model is asked to honour.
func decodeScenePlan(raw string) (*ScenePlan, error) {
	obj, err := jsonObject(raw)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(obj, &fields); err != nil {
		return nil, fmt.Errorf("content is not a json object: %w", err)
	}
	if missing := missingKeys(fields, requiredPlanFields); len(missing) > 0 {
		return nil, fmt.Errorf("scene plan is missing %s", strings.Join(missing, ", "))
	}
	var camera map[string]json.RawMessage
	if err := json.Unmarshal(fields["camera"], &camera); err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}
	if missing := missingKeys(camera, requiredCameraFields); len(missing) > 0 {
		return nil, fmt.Errorf("scene plan camera is missing %s", strings.Join(missing, ", "))
	}
	var plan ScenePlan
	if err := json.Unmarshal(obj, &plan); err != nil {
		return nil, fmt.Errorf("decode scene plan: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Validate checks the prompt and camera constraints.
func (p *ScenePlan) Validate() error {
	prompt := strings.TrimSpace(p.ImageGenerationPrompt)
	if prompt == "" {
		return fmt.Errorf("scene plan has an empty image_generation_prompt")
	}
	if n := utf8.RuneCountInString(prompt); n > MaxPromptLength {
		return fmt.Errorf("image_generation_prompt is %d characters, limit is %d", n, MaxPromptLength)
	}
	for _, a := range cameraAngles {
		if p.Camera.Angle == a {
			return nil
		}
	}
	return fmt.Errorf("unknown camera angle %q", p.Camera.Angle)
}

func missingKeys(fields map[string]json.RawMessage, required []string) []string {
	var missing []string
	for _, key := range required {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
