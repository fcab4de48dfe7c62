// Package brief loads and validates campaign briefs.
package brief

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
)

// Format selects the brief decoder.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the decoder from the file extension: .yaml and .yml are
// YAML, anything else is JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a brief from disk. Relative cutout image paths are resolved
// against inputDir, or the working directory when inputDir is empty.
func Load(path, inputDir string) (*domain.CampaignBrief, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("brief: read %s: %w", path, err)
	}
	b, err := Parse(raw, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("brief: %s: %w", path, err)
	}
	if err := ResolveCutouts(b, inputDir); err != nil {
		return nil, err
	}
	return b, nil
}

// Parse decodes raw brief bytes.
func Parse(raw []byte, format Format) (*domain.CampaignBrief, error) {
	var b domain.CampaignBrief
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(bytes.NewReader(raw)).Decode(&b); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	}
	return &b, nil
}

// ResolveCutouts turns every relative CutoutImage into an absolute path.
func ResolveCutouts(b *domain.CampaignBrief, inputDir string) error {
	if b == nil {
		return nil
	}
	base := strings.TrimSpace(inputDir)
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return fmt.Errorf("brief: resolve input dir: %w", err)
	}
	for i := range b.Products {
		p := strings.TrimSpace(b.Products[i].CutoutImage)
		if p == "" {
			b.Products[i].CutoutImage = ""
			continue
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		b.Products[i].CutoutImage = filepath.Clean(p)
	}
	return nil
}
