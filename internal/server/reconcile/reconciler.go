package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/syncrecords"
)

// Publisher receives the resolved batch of every push.
type Publisher interface {
	Publish(owner string, kind records.Kind, originDevice string, ev *proto.SyncEvent)
}

const DefaultMaxRetries = 5

// Reconciler runs push and pull for one payload type.
type Reconciler[P records.Payload] struct {
	repo       syncrecords.Repository[P]
	publisher  Publisher
	logger     logging.Logger
	maxRetries int
	now        func() int64
}

func New[P records.Payload](repo syncrecords.Repository[P], pub Publisher, logger logging.Logger, maxRetries int) *Reconciler[P] {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	kind := records.KindOf[P]()
	return &Reconciler[P]{
		repo:       repo,
		publisher:  pub,
		logger:     logger.With("module", "reconcile", "kind", kind),
		maxRetries: maxRetries,
		now:        common.NowMillis,
	}
}

func (r *Reconciler[P]) Kind() records.Kind { return records.KindOf[P]() }

// Push validates the whole batch, then reconciles record by record. Records
// resolved before a failure stay committed and are still published; the
// caller retries the full batch, which replays them as no-ops.
func (r *Reconciler[P]) Push(ctx context.Context, owner, device string, in []proto.WireRecord) (*proto.PushResponse, error) {
	batch, err := records.DecodeBatch[P](owner, in)
	if err != nil {
		return nil, err
	}

	serverTime := r.now()
	resolved := make([]records.Record[P], 0, len(batch))
	var failure error
	for _, c := range batch {
		res, err := r.Reconcile(ctx, owner, device, c)
		if err != nil {
			failure = fmt.Errorf("record localId=%d serverId=%d: %w", c.LocalID, c.ServerID, err)
			break
		}
		resolved = append(resolved, res)
	}

	out, err := records.ToWireBatch(resolved)
	if err != nil {
		return nil, err
	}
	if len(out) > 0 && r.publisher != nil {
		r.publisher.Publish(owner, r.Kind(), device, &proto.SyncEvent{
			Kind:       r.Kind().String(),
			Records:    out,
			ServerTime: serverTime,
		})
	}
	if failure != nil {
		r.logger.Error(ctx, "push failed", "owner", owner, "applied", len(resolved), "total", len(batch), "error", failure)
		return nil, failure
	}

	r.logger.Debug(ctx, "push reconciled", "owner", owner, "records", len(out))
	return &proto.PushResponse{Records: out, ServerTime: serverTime}, nil
}

// Reconcile resolves one client record. The write is conditioned on the
// timestamp that was read, so a concurrent writer forces a re-read instead
// of a lost update.
func (r *Reconciler[P]) Reconcile(ctx context.Context, owner, device string, c records.Record[P]) (records.Record[P], error) {
	origin := syncrecords.Origin{Device: device, LocalID: c.LocalID}
	if c.LocalID <= 0 {
		origin = syncrecords.Origin{}
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return c, err
		}

		server, err := r.lookup(ctx, owner, c.ServerID, origin)
		if err != nil {
			return c, err
		}

		action := Decide(server, c)
		res, ok, err := r.apply(ctx, action, server, c, origin, r.now())
		if err != nil {
			return c, err
		}
		if !ok {
			r.logger.Debug(ctx, "compare-and-set miss", "action", action, "attempt", attempt+1)
			continue
		}
		res.LocalID = c.LocalID
		res.OwnerID = owner
		return res, nil
	}
	return c, common.ErrConcurrentUpdate
}

// lookup finds the server copy by id, falling back to the record created
// from the same device row when the id is absent or unknown.
func (r *Reconciler[P]) lookup(ctx context.Context, owner string, id int64, origin syncrecords.Origin) (*records.Record[P], error) {
	if id > 0 {
		rec, err := r.repo.Get(ctx, owner, id)
		if err == nil {
			return rec, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}
	rec, err := r.repo.FindByOrigin(ctx, owner, origin)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, nil
	}
	return rec, err
}

func (r *Reconciler[P]) apply(ctx context.Context, action Action, server *records.Record[P], c records.Record[P], origin syncrecords.Origin, at int64) (records.Record[P], bool, error) {
	switch action {
	case Create:
		id, ok, err := r.repo.Insert(ctx, c, origin, at)
		if err != nil || !ok {
			return c, false, err
		}
		c.ServerID = id
		return c, true, nil

	case Keep:
		return *server, true, nil

	case Tombstone:
		ok, err := r.repo.CompareAndTombstone(ctx, server.OwnerID, server.ServerID, c.LastModifiedAt, server.LastModifiedAt, at)
		if err != nil || !ok {
			return c, false, err
		}
		res := *server
		res.Tombstoned = true
		res.LastModifiedAt = c.LastModifiedAt
		return res, true, nil

	case Update:
		c.ServerID = server.ServerID
		c.Tombstoned = false
		ok, err := r.repo.CompareAndUpdate(ctx, c, server.LastModifiedAt, at)
		if err != nil || !ok {
			return c, false, err
		}
		return c, true, nil
	}
	return c, false, fmt.Errorf("unknown action %d", action)
}

// Pull returns everything changed after watermark, tombstones included: a
// record qualifies by its lastModifiedAt or by the server time of its last
// write, so an edit made offline long before it was pushed is not missed.
// serverTime is taken before the read so nothing written meanwhile is
// skipped by the next pull.
func (r *Reconciler[P]) Pull(ctx context.Context, owner string, watermark *int64) (*proto.PullResponse, error) {
	serverTime := r.now()
	changed, err := r.repo.ChangedSince(ctx, owner, watermark)
	if err != nil {
		return nil, err
	}
	out, err := records.ToWireBatch(changed)
	if err != nil {
		return nil, err
	}
	return &proto.PullResponse{Records: out, ServerTime: serverTime}, nil
}
