// Package localstore is the device's source of truth for one record kind.
//
// Every write goes through a per-kind mutex, so user edits and the apply
// engine never interleave on the same table. User writes always leave the
// row unsynced with a fresh lastModifiedAt; that is how the scheduler finds
// work to push.
package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/client/repositories/localrecords"
	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

type Store[P records.Payload] struct {
	db   *sql.DB
	mu   sync.Mutex
	repo func(dbx.DBTX) localrecords.Repository[P]
	now  func() int64
}

func New[P records.Payload](db *sql.DB) *Store[P] {
	return &Store[P]{
		db: db,
		repo: func(tx dbx.DBTX) localrecords.Repository[P] {
			return localrecords.NewSQLiteRepository[P](tx)
		},
		now: common.NowMillis,
	}
}

func (s *Store[P]) Kind() records.Kind { return records.KindOf[P]() }

// stamp is the timestamp for a local edit of a row last modified at prev.
// A clock that went backwards must not make the edit look older.
func (s *Store[P]) stamp(prev int64) int64 {
	t := s.now()
	if t <= prev {
		return prev + 1
	}
	return t
}

// List returns the owner's live rows in the kind's display order:
// transactions newest date first, products and services by name.
func (s *Store[P]) List(ctx context.Context, owner string) ([]records.Record[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.repo(s.db).List(ctx, owner)
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func sortRecords[P records.Payload](rs []records.Record[P]) {
	sort.SliceStable(rs, func(i, j int) bool {
		switch a := any(rs[i].Payload).(type) {
		case records.Transaction:
			b := any(rs[j].Payload).(records.Transaction)
			if a.Date != b.Date {
				return a.Date > b.Date
			}
			return rs[i].LocalID > rs[j].LocalID
		case records.Product:
			return strings.ToLower(a.Name) < strings.ToLower(any(rs[j].Payload).(records.Product).Name)
		case records.Service:
			return strings.ToLower(a.Name) < strings.ToLower(any(rs[j].Payload).(records.Service).Name)
		}
		return rs[i].LocalID < rs[j].LocalID
	})
}

// UnsyncedBatch is exactly what the next push sends, pending deletes included.
func (s *Store[P]) UnsyncedBatch(ctx context.Context, owner string) ([]records.Record[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo(s.db).Unsynced(ctx, owner)
}

func (s *Store[P]) UnsyncedCount(ctx context.Context, owner string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo(s.db).CountUnsynced(ctx, owner)
}

// Get returns common.ErrorNotFound for a missing or locally deleted row.
func (s *Store[P]) Get(ctx context.Context, owner string, localID int64) (*records.Record[P], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.repo(s.db).Get(ctx, owner, localID)
	if err != nil {
		return nil, err
	}
	if r.Tombstoned {
		return nil, common.ErrorNotFound
	}
	return r, nil
}

// Create adds a new unsynced row for owner.
func (s *Store[P]) Create(ctx context.Context, owner string, p P) (records.Record[P], error) {
	return s.UpsertLocal(ctx, records.Record[P]{OwnerID: owner, Payload: p})
}

// UpsertLocal stores a user edit. A zero LocalID creates a row; otherwise the
// existing row gets the new payload. ServerID is never taken from r: it is
// only ever set by the apply engine.
func (s *Store[P]) UpsertLocal(ctx context.Context, r records.Record[P]) (records.Record[P], error) {
	if r.OwnerID == "" {
		return r, fmt.Errorf("%w: owner is required", common.ErrValidation)
	}
	if err := r.Payload.Validate(); err != nil {
		return r, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	repo := s.repo(s.db)

	if r.LocalID == 0 {
		rec := records.Record[P]{
			OwnerID:        r.OwnerID,
			Payload:        r.Payload,
			LastModifiedAt: s.stamp(0),
			SyncState:      records.Unsynced,
		}
		id, err := repo.Insert(ctx, rec)
		if err != nil {
			return r, err
		}
		rec.LocalID = id
		return rec, nil
	}

	cur, err := repo.Get(ctx, r.OwnerID, r.LocalID)
	if err != nil {
		return r, err
	}
	if cur.Tombstoned {
		return r, common.ErrorNotFound
	}
	cur.Payload = r.Payload
	cur.LastModifiedAt = s.stamp(cur.LastModifiedAt)
	cur.SyncState = records.Unsynced
	if err := repo.Update(ctx, *cur); err != nil {
		return r, err
	}
	return *cur, nil
}

// SoftDeleteLocal marks the row deleted and unsynced. It stays in the table,
// hidden from List, until a push carries the delete to the server and the
// resulting tombstone removes it.
func (s *Store[P]) SoftDeleteLocal(ctx context.Context, owner string, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo := s.repo(s.db)
	cur, err := repo.Get(ctx, owner, localID)
	if err != nil {
		return err
	}
	if cur.Tombstoned {
		return nil
	}
	cur.Tombstoned = true
	cur.LastModifiedAt = s.stamp(cur.LastModifiedAt)
	cur.SyncState = records.Unsynced
	return repo.Update(ctx, *cur)
}

// HardDeleteLocal physically removes the row.
func (s *Store[P]) HardDeleteLocal(ctx context.Context, owner string, localID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo(s.db).Delete(ctx, owner, localID)
}

// Exclusive runs fn inside one transaction while holding the store's writer
// lock. The apply engine merges whole batches this way.
func (s *Store[P]) Exclusive(ctx context.Context, fn func(ctx context.Context, repo localrecords.Repository[P]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, s.repo(tx))
	})
}
