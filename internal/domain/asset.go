package domain

import "time"

// AssetKind enumerates asset types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
)

// GeneratedAsset is a generated image that has been written to disk.
type GeneratedAsset struct {
	ID           string
	RunID        string
	JobID        string
	Kind         AssetKind
	BriefName    string
	TargetRegion string
	ProductName  string
	AspectRatio  string
	Seed         int64
	SourceURL    string
	Path         string
	Bytes        int64
	Width        int
	Height       int
	CreatedAt    time.Time
}
