// Package aspectratio maps arbitrary "W:H" strings onto the preset sizes the
// image-generation service accepts.
package aspectratio

import (
	"math"
	"strconv"
	"strings"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
)

// Size is a pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type preset struct {
	key  string
	size Size
}

// presets is ordered: Approximate resolves ties to the earliest entry.
var presets = []preset{
	{key: "1:1", size: Size{Width: 1024, Height: 1024}},
	{key: "4:3", size: Size{Width: 2304, Height: 1792}},
	{key: "3:4", size: Size{Width: 1792, Height: 2304}},
	{key: "16:9", size: Size{Width: 2688, Height: 1536}},
	{key: "7:4", size: Size{Width: 1344, Height: 768}},
	{key: "9:7", size: Size{Width: 1152, Height: 896}},
	{key: "7:9", size: Size{Width: 896, Height: 1152}},
}

// Keys returns the supported ratio keys in enumeration order.
func Keys() []string {
	keys := make([]string, len(presets))
	for i, p := range presets {
		keys[i] = p.key
	}
	return keys
}

// SizeOf returns the preset size for a supported key.
func SizeOf(key string) (Size, bool) {
	for _, p := range presets {
		if p.key == key {
			return p.size, true
		}
	}
	return Size{}, false
}

// IsSupported reports whether ratio is one of the preset keys.
func IsSupported(ratio string) bool {
	_, ok := SizeOf(ratio)
	return ok
}

// Parse splits a "W:H" string into two positive integers.
func Parse(ratio string) (int, int, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(ratio), ":")
	if !ok {
		return 0, 0, &domain.FormatError{Input: ratio}
	}
	w, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil || w <= 0 {
		return 0, 0, &domain.FormatError{Input: ratio}
	}
	h, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil || h <= 0 {
		return 0, 0, &domain.FormatError{Input: ratio}
	}
	return w, h, nil
}

// Approximate returns the preset key whose width/height quotient is closest to
// the requested ratio. Supported keys map to themselves.
func Approximate(ratio string) (string, error) {
	w, h, err := Parse(ratio)
	if err != nil {
		return "", err
	}
	if IsSupported(ratio) {
		return ratio, nil
	}
	target := float64(w) / float64(h)

	closest := presets[0]
	closestDiff := math.Abs(quotient(closest.key) - target)
	for _, p := range presets[1:] {
		if diff := math.Abs(quotient(p.key) - target); diff < closestDiff {
			closest, closestDiff = p, diff
		}
	}
	return closest.key, nil
}

// ExpandedSize returns a pixel size with exactly the requested proportions and
// roughly the pixel area of the closest preset. Supported keys return their
// stored size.
func ExpandedSize(ratio string) (Size, error) {
	if size, ok := SizeOf(ratio); ok {
		return size, nil
	}
	approx, err := Approximate(ratio)
	if err != nil {
		return Size{}, err
	}
	base, _ := SizeOf(approx)
	w, h, _ := Parse(ratio)

	area := float64(base.Width * base.Height)
	r := float64(w) / float64(h)
	return Size{
		Width:  int(math.Round(math.Sqrt(area * r))),
		Height: int(math.Round(math.Sqrt(area / r))),
	}, nil
}

// Resolution is the outcome of resolving a requested ratio.
type Resolution struct {
	Requested    string
	Key          string
	Size         Size
	Approximated bool
}

// Resolve maps a requested ratio to the key used for generation. With exact
// set, unsupported ratios keep their own key and receive an expanded size;
// otherwise they are replaced by the closest preset.
func Resolve(ratio string, exact bool) (Resolution, error) {
	ratio = strings.TrimSpace(ratio)
	if size, ok := SizeOf(ratio); ok {
		return Resolution{Requested: ratio, Key: ratio, Size: size}, nil
	}
	if exact {
		size, err := ExpandedSize(ratio)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Requested: ratio, Key: ratio, Size: size}, nil
	}
	key, err := Approximate(ratio)
	if err != nil {
		return Resolution{}, err
	}
	size, _ := SizeOf(key)
	return Resolution{Requested: ratio, Key: key, Size: size, Approximated: true}, nil
}

func quotient(key string) float64 {
	w, h, _ := Parse(key)
	return float64(w) / float64(h)
}
