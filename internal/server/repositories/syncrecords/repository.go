// Package syncrecords is the server-side storage of synced records, one
// table per kind. Every write that can race another device is a
// compare-and-set on last_modified_at.
package syncrecords

import (
	"context"

	"github.com/dmitrijs2005/shopsync/internal/records"
)

// Origin identifies the device row a record was first created from. It lets
// a replayed create find the record the lost response had already made.
type Origin struct {
	Device  string
	LocalID int64
}

type Repository[P records.Payload] interface {
	// Get returns common.ErrorNotFound when owner has no record with that id.
	Get(ctx context.Context, owner string, id int64) (*records.Record[P], error)
	// FindByOrigin returns common.ErrorNotFound when nothing was created from o.
	FindByOrigin(ctx context.Context, owner string, o Origin) (*records.Record[P], error)
	// Insert creates the record and returns its id. ok is false when a record
	// with the same origin already exists. changedAt is the server clock of
	// the write, in epoch milliseconds, as for the conditional writes below.
	Insert(ctx context.Context, r records.Record[P], o Origin, changedAt int64) (id int64, ok bool, err error)
	// CompareAndUpdate overwrites payload and timestamp and clears the
	// tombstone, but only while the stored last_modified_at equals expected.
	CompareAndUpdate(ctx context.Context, r records.Record[P], expected, changedAt int64) (bool, error)
	// CompareAndTombstone marks the record deleted at lastModifiedAt, with the
	// same condition as CompareAndUpdate.
	CompareAndTombstone(ctx context.Context, owner string, id, lastModifiedAt, expected, changedAt int64) (bool, error)
	// ChangedSince lists records, tombstones included, whose last_modified_at
	// or server write time is after watermark, or all of them for a nil
	// watermark.
	ChangedSince(ctx context.Context, owner string, watermark *int64) ([]records.Record[P], error)
}
