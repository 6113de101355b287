package reconcile

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/client/apply"
	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopsync/internal/client/syncer"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loopback connects a device lane straight to a reconciler and hub.
type loopback struct {
	device string
	rec    *Reconciler[records.Transaction]
	hub    *realtime.Hub
}

func (l *loopback) Ping(context.Context) error { return nil }

func (l *loopback) Push(ctx context.Context, _ string, in []proto.WireRecord) (*proto.PushResponse, error) {
	return l.rec.Push(ctx, owner, l.device, in)
}

func (l *loopback) Pull(ctx context.Context, _ string, wm *int64) (*proto.PullResponse, error) {
	return l.rec.Pull(ctx, owner, wm)
}

func (l *loopback) Subscribe(ctx context.Context, _ string) (client.EventStream, error) {
	return &hubStream{ctx: ctx, hub: l.hub, sub: l.hub.Subscribe(owner, records.KindTransaction, l.device)}, nil
}

type hubStream struct {
	ctx context.Context
	hub *realtime.Hub
	sub *realtime.Subscription
}

func (s *hubStream) Recv() (*proto.SyncEvent, error) {
	select {
	case <-s.ctx.Done():
		s.hub.Unsubscribe(s.sub)
		return nil, s.ctx.Err()
	case ev, ok := <-s.sub.C():
		if !ok {
			if s.sub.Evicted() {
				return nil, client.ErrEvicted
			}
			return nil, client.ErrUnavailable
		}
		return ev, nil
	}
}

type device struct {
	store *localstore.Store[records.Transaction]
	lane  *syncer.Lane[records.Transaction]
}

func newDevice(t *testing.T, id string, rec *Reconciler[records.Transaction], hub *realtime.Hub) *device {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := localstore.New[records.Transaction](db)
	lane := syncer.NewLane(store, apply.New(store, logging.Nop{}),
		&loopback{device: id, rec: rec, hub: hub},
		syncer.NewWatermarks(metadata.NewSQLiteRepository(db)), 5*time.Second, logging.Nop{})
	return &device{store: store, lane: lane}
}

func (d *device) rows(t *testing.T) []records.Record[records.Transaction] {
	t.Helper()
	out, err := d.store.List(context.Background(), owner)
	require.NoError(t, err)
	return out
}

func (d *device) sync(t *testing.T) {
	t.Helper()
	_, err := d.lane.Sync(context.Background(), owner)
	require.NoError(t, err)
}

func TestTwoDevicesConverge(t *testing.T) {
	hub := realtime.NewHub(16, logging.Nop{})
	t.Cleanup(hub.Close)
	rec := New[records.Transaction](newMemRepo[records.Transaction](), hub, logging.Nop{}, 3)

	a := newDevice(t, devA, rec, hub)
	b := newDevice(t, devB, rec, hub)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, d := range []*device{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.lane.Listen(ctx, owner)
		}()
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})

	waitFor := func(d *device, cond func([]records.Record[records.Transaction]) bool) {
		t.Helper()
		require.Eventually(t, func() bool {
			out, err := d.store.List(context.Background(), owner)
			return err == nil && cond(out)
		}, 2*time.Second, 5*time.Millisecond)
	}

	// A creates; B learns the record and the server id.
	_, err := a.store.Create(context.Background(), owner, tx(1))
	require.NoError(t, err)
	a.sync(t)

	aRows := a.rows(t)
	require.Len(t, aRows, 1)
	assert.Equal(t, records.Synced, aRows[0].SyncState)
	serverID := aRows[0].ServerID
	require.Positive(t, serverID)

	waitFor(b, func(rs []records.Record[records.Transaction]) bool {
		return len(rs) == 1 && rs[0].ServerID == serverID
	})

	// B edits; A receives the newer version.
	bRow := b.rows(t)[0]
	bRow.Payload = tx(2)
	_, err = b.store.UpsertLocal(context.Background(), bRow)
	require.NoError(t, err)
	b.sync(t)

	waitFor(a, func(rs []records.Record[records.Transaction]) bool {
		return len(rs) == 1 && rs[0].Payload.Amount == 2
	})

	// Both edit the same record; after pushing, both hold one version.
	aRow := a.rows(t)[0]
	aRow.Payload = tx(3)
	_, err = a.store.UpsertLocal(context.Background(), aRow)
	require.NoError(t, err)
	bRow = b.rows(t)[0]
	bRow.Payload = tx(4)
	_, err = b.store.UpsertLocal(context.Background(), bRow)
	require.NoError(t, err)

	a.sync(t)
	b.sync(t)

	require.Eventually(t, func() bool {
		ra, errA := a.store.List(context.Background(), owner)
		rb, errB := b.store.List(context.Background(), owner)
		return errA == nil && errB == nil && len(ra) == 1 && len(rb) == 1 &&
			ra[0].Payload == rb[0].Payload &&
			ra[0].SyncState == records.Synced && rb[0].SyncState == records.Synced
	}, 2*time.Second, 5*time.Millisecond)

	// A deletes; the tombstone reaches B.
	require.NoError(t, a.store.SoftDeleteLocal(context.Background(), owner, a.rows(t)[0].LocalID))
	a.sync(t)
	assert.Empty(t, a.rows(t))

	waitFor(b, func(rs []records.Record[records.Transaction]) bool { return len(rs) == 0 })

	// Nothing is left to push on either side.
	for _, d := range []*device{a, b} {
		n, err := d.lane.Pending(context.Background(), owner)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}
