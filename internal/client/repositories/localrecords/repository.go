// Package localrecords is the client's row-level access to the local replica.
// It knows nothing about sync rules; localstore and the apply engine decide
// what to write.
package localrecords

import (
	"context"

	"github.com/dmitrijs2005/shopsync/internal/records"
)

type Repository[P records.Payload] interface {
	// List returns the owner's live rows (local deletes awaiting push are hidden).
	List(ctx context.Context, owner string) ([]records.Record[P], error)
	// Unsynced returns every unsynced row, pending deletes included.
	Unsynced(ctx context.Context, owner string) ([]records.Record[P], error)
	CountUnsynced(ctx context.Context, owner string) (int, error)
	// Get and FindByServerID return common.ErrorNotFound on a miss.
	Get(ctx context.Context, owner string, localID int64) (*records.Record[P], error)
	FindByServerID(ctx context.Context, owner string, serverID int64) (*records.Record[P], error)
	Insert(ctx context.Context, r records.Record[P]) (int64, error)
	// Update rewrites every column of the row identified by owner and LocalID.
	Update(ctx context.Context, r records.Record[P]) error
	Delete(ctx context.Context, owner string, localID int64) error
}
