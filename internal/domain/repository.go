package domain

import "context"

// AssetRecorder persists metadata about generated files. Implementations must
// not be relied upon for resuming runs.
type AssetRecorder interface {
	RecordAssets(ctx context.Context, assets []GeneratedAsset) error
}

// NopRecorder discards every record.
type NopRecorder struct{}

func (NopRecorder) RecordAssets(context.Context, []GeneratedAsset) error { return nil }

var _ AssetRecorder = NopRecorder{}
