package syncer

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

// Watermarks keeps the last pull's server time per owner and kind in the
// metadata table.
type Watermarks struct {
	repo metadata.Repository
}

func NewWatermarks(repo metadata.Repository) *Watermarks {
	return &Watermarks{repo: repo}
}

func WatermarkKey(owner string, kind records.Kind) string {
	return fmt.Sprintf("watermark/%s/%s", owner, kind)
}

// Get returns nil when the device has never pulled kind for owner.
func (w *Watermarks) Get(ctx context.Context, owner string, kind records.Kind) (*int64, error) {
	v, ok, err := w.repo.GetInt64(ctx, WatermarkKey(owner, kind))
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (w *Watermarks) Set(ctx context.Context, owner string, kind records.Kind, serverTime int64) error {
	return w.repo.SetInt64(ctx, WatermarkKey(owner, kind), serverTime)
}
