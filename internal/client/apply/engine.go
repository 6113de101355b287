// Package apply merges server-originated records into the local store. Push
// responses, pull responses and realtime events all go through Apply.
package apply

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/client/repositories/localrecords"
	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

// Source says where a batch came from. Only a push response answers this
// device's own rows, so only it may match rows by correlation local id;
// in pulled and realtime batches the local ids belong to other devices.
type Source int

const (
	FromPush Source = iota
	FromPull
	FromRealtime
)

func (s Source) String() string {
	switch s {
	case FromPush:
		return "push"
	case FromPull:
		return "pull"
	case FromRealtime:
		return "realtime"
	}
	return "unknown"
}

// Result counts what one Apply call did.
type Result struct {
	Inserted  int
	Updated   int
	Deleted   int
	Unchanged int
	Conflicts int
}

func (r Result) Changed() int { return r.Inserted + r.Updated + r.Deleted }

type Engine[P records.Payload] struct {
	store  *localstore.Store[P]
	logger logging.Logger
}

func New[P records.Payload](store *localstore.Store[P], logger logging.Logger) *Engine[P] {
	return &Engine[P]{
		store:  store,
		logger: logger.With("module", "apply", "kind", records.KindOf[P]().String()),
	}
}

// Resolve finds the local row an incoming server record refers to: the row
// with the same server id, else (for push responses) the still-unsynced row
// named by the correlation local id. It returns (nil, nil) when the record is
// new to this device, and common.ErrIdentityConflict when the correlation row
// is already bound to a different server id.
func Resolve[P records.Payload](ctx context.Context, repo localrecords.Repository[P], owner string, in records.Record[P], src Source) (*records.Record[P], error) {
	local, err := repo.FindByServerID(ctx, owner, in.ServerID)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	if src != FromPush || in.LocalID == 0 {
		return nil, nil
	}

	local, err = repo.Get(ctx, owner, in.LocalID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if local.ServerID != 0 && local.ServerID != in.ServerID {
		return nil, fmt.Errorf("%w: local row %d is bound to server id %d, incoming %d",
			common.ErrIdentityConflict, local.LocalID, local.ServerID, in.ServerID)
	}
	return local, nil
}

// Apply merges in for owner in a single transaction. Identity conflicts are
// logged and skipped; any other error rolls the whole batch back.
func (e *Engine[P]) Apply(ctx context.Context, owner string, in []records.Record[P], src Source) (Result, error) {
	var res Result
	if len(in) == 0 {
		return res, nil
	}

	err := e.store.Exclusive(ctx, func(ctx context.Context, repo localrecords.Repository[P]) error {
		res = Result{}
		for _, rec := range in {
			if err := e.applyOne(ctx, repo, owner, rec, src, &res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug(ctx, "applied batch", "owner", owner, "source", src.String(),
		"inserted", res.Inserted, "updated", res.Updated, "deleted", res.Deleted,
		"unchanged", res.Unchanged, "conflicts", res.Conflicts)
	return res, nil
}

func (e *Engine[P]) applyOne(ctx context.Context, repo localrecords.Repository[P], owner string, in records.Record[P], src Source, res *Result) error {
	local, err := Resolve(ctx, repo, owner, in, src)
	if errors.Is(err, common.ErrIdentityConflict) {
		e.logger.Error(ctx, "identity conflict, record skipped", "owner", owner,
			"serverId", in.ServerID, "localId", in.LocalID, "error", err)
		res.Conflicts++
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case in.Tombstoned && local == nil:
		res.Unchanged++
		return nil

	case in.Tombstoned:
		res.Deleted++
		return repo.Delete(ctx, owner, local.LocalID)

	case local == nil:
		_, err := repo.Insert(ctx, records.Record[P]{
			ServerID:       in.ServerID,
			OwnerID:        owner,
			Payload:        in.Payload,
			LastModifiedAt: in.LastModifiedAt,
			SyncState:      records.Synced,
		})
		if err != nil {
			return err
		}
		res.Inserted++
		return nil
	}

	claimed := local.ServerID == 0
	local.ServerID = in.ServerID

	if in.LastModifiedAt >= local.LastModifiedAt {
		if !claimed && local.SyncState == records.Synced && local.LastModifiedAt == in.LastModifiedAt && !local.Tombstoned {
			res.Unchanged++
			return nil
		}
		local.Payload = in.Payload
		local.LastModifiedAt = in.LastModifiedAt
		local.Tombstoned = false
		local.SyncState = records.Synced
		res.Updated++
		return repo.Update(ctx, *local)
	}

	// The local row is newer and stays unsynced; it still learns its
	// server id so the next push updates instead of creating.
	if claimed {
		res.Updated++
		return repo.Update(ctx, *local)
	}
	res.Unchanged++
	return nil
}
