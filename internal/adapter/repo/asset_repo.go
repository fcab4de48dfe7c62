package repo

import (
	"context"
	"fmt"

	"github.com/ahmed-musallam/creative-automation-pipeline/internal/domain"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/infra"
	"github.com/ahmed-musallam/creative-automation-pipeline/internal/sqlinline"
)

// AssetLedgerPG implements domain.AssetRecorder using PostgreSQL.
type AssetLedgerPG struct {
	db infra.SQLExecutor
}

// NewAssetLedger constructs a ledger on top of a marker-checking executor.
func NewAssetLedger(db infra.SQLExecutor) *AssetLedgerPG {
	return &AssetLedgerPG{db: db}
}

// EnsureSchema creates the ledger table and its index when missing.
func (r *AssetLedgerPG) EnsureSchema(ctx context.Context) error {
	for _, q := range []string{sqlinline.QCreateGeneratedAssets, sqlinline.QIndexGeneratedAssetsRun} {
		if _, err := r.db.Exec(ctx, q); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

// RecordAssets inserts one row per asset. Re-recording an id is a no-op.
func (r *AssetLedgerPG) RecordAssets(ctx context.Context, assets []domain.GeneratedAsset) error {
	for _, a := range assets {
		if _, err := r.db.Exec(ctx, sqlinline.QInsertGeneratedAsset,
			a.ID, a.RunID, a.JobID, string(a.Kind), a.BriefName, a.TargetRegion, a.ProductName,
			a.AspectRatio, a.Seed, a.SourceURL, a.Path, a.Bytes, a.Width, a.Height, a.CreatedAt,
		); err != nil {
			return fmt.Errorf("record asset %s: %w", a.ID, err)
		}
	}
	return nil
}

// CountByRun returns how many assets a run recorded.
func (r *AssetLedgerPG) CountByRun(ctx context.Context, runID string) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, sqlinline.QCountAssetsByRun, runID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

var _ domain.AssetRecorder = (*AssetLedgerPG)(nil)
