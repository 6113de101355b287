package apply

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/client/repositories/localrecords"
	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tx = records.Record[records.Transaction]

func sale(amount float64) records.Transaction {
	return records.Transaction{Type: records.TransactionIncome, Amount: amount, Category: "sales", Date: "2025-05-01"}
}

func newEngine(t *testing.T) (*Engine[records.Transaction], *localstore.Store[records.Transaction]) {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := localstore.New[records.Transaction](db)
	return New(store, logging.Nop{}), store
}

// seed writes a row directly, bypassing the user-edit rules.
func seed(t *testing.T, store *localstore.Store[records.Transaction], r tx) int64 {
	t.Helper()
	var id int64
	require.NoError(t, store.Exclusive(context.Background(), func(ctx context.Context, repo localrecords.Repository[records.Transaction]) error {
		var err error
		id, err = repo.Insert(ctx, r)
		return err
	}))
	return id
}

func rawGet(t *testing.T, store *localstore.Store[records.Transaction], owner string, localID int64) *tx {
	t.Helper()
	var out *tx
	err := store.Exclusive(context.Background(), func(ctx context.Context, repo localrecords.Repository[records.Transaction]) error {
		r, err := repo.Get(ctx, owner, localID)
		out = r
		return err
	})
	if err != nil {
		return nil
	}
	return out
}

func TestFirstSync_ClaimsOwnRow(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", Payload: sale(10), LastModifiedAt: 100})

	res, err := e.Apply(ctx, "o1", []tx{{LocalID: id, ServerID: 7, Payload: sale(10), LastModifiedAt: 100}}, FromPush)
	require.NoError(t, err)
	assert.Equal(t, Result{Updated: 1}, res)

	got := rawGet(t, store, "o1", id)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.ServerID)
	assert.Equal(t, records.Synced, got.SyncState)

	list, err := store.List(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 1, "no duplicate row")
}

func TestApply_IsIdempotent(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	batch := []tx{
		{ServerID: 1, Payload: sale(1), LastModifiedAt: 10},
		{ServerID: 2, Payload: sale(2), LastModifiedAt: 20},
	}
	res, err := e.Apply(ctx, "o1", batch, FromPull)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	res, err = e.Apply(ctx, "o1", batch, FromPull)
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 2}, res)

	list, err := store.List(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestApply_NewerServerVersionWins(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 7, Payload: sale(1), LastModifiedAt: 100, SyncState: records.Synced})

	_, err := e.Apply(ctx, "o1", []tx{{ServerID: 7, Payload: sale(2), LastModifiedAt: 200}}, FromRealtime)
	require.NoError(t, err)

	got := rawGet(t, store, "o1", id)
	assert.Equal(t, 2.0, got.Payload.Amount)
	assert.Equal(t, int64(200), got.LastModifiedAt)
}

func TestApply_TieFavorsServer(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 7, Payload: sale(1), LastModifiedAt: 100, SyncState: records.Unsynced})

	res, err := e.Apply(ctx, "o1", []tx{{ServerID: 7, Payload: sale(5), LastModifiedAt: 100}}, FromPull)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)

	got := rawGet(t, store, "o1", id)
	assert.Equal(t, 5.0, got.Payload.Amount)
	assert.Equal(t, records.Synced, got.SyncState)
}

func TestApply_OlderServerVersionKeepsLocalEdit(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 7, Payload: sale(9), LastModifiedAt: 300})

	res, err := e.Apply(ctx, "o1", []tx{{ServerID: 7, Payload: sale(1), LastModifiedAt: 200}}, FromRealtime)
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 1}, res)

	got := rawGet(t, store, "o1", id)
	assert.Equal(t, 9.0, got.Payload.Amount)
	assert.Equal(t, int64(300), got.LastModifiedAt)
	assert.Equal(t, records.Unsynced, got.SyncState)
}

func TestApply_ClaimKeepsNewerLocalEditButLearnsServerID(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	// edited again while the first push was in flight
	id := seed(t, store, tx{OwnerID: "o1", Payload: sale(3), LastModifiedAt: 150})

	_, err := e.Apply(ctx, "o1", []tx{{LocalID: id, ServerID: 7, Payload: sale(1), LastModifiedAt: 100}}, FromPush)
	require.NoError(t, err)

	got := rawGet(t, store, "o1", id)
	assert.Equal(t, int64(7), got.ServerID)
	assert.Equal(t, 3.0, got.Payload.Amount)
	assert.Equal(t, records.Unsynced, got.SyncState)
}

func TestApply_Tombstone(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 7, Payload: sale(1), LastModifiedAt: 100, SyncState: records.Synced})

	res, err := e.Apply(ctx, "o1", []tx{{ServerID: 7, LastModifiedAt: 300, Tombstoned: true}}, FromRealtime)
	require.NoError(t, err)
	assert.Equal(t, Result{Deleted: 1}, res)
	assert.Nil(t, rawGet(t, store, "o1", id))

	res, err = e.Apply(ctx, "o1", []tx{{ServerID: 7, LastModifiedAt: 300, Tombstoned: true}}, FromRealtime)
	require.NoError(t, err)
	assert.Equal(t, Result{Unchanged: 1}, res, "unknown tombstones are never materialized")

	list, err := store.List(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestApply_PushedDeleteRemovesPendingRow(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", Payload: sale(1), LastModifiedAt: 100, Tombstoned: true})

	_, err := e.Apply(ctx, "o1", []tx{{LocalID: id, ServerID: 3, LastModifiedAt: 100, Tombstoned: true}}, FromPush)
	require.NoError(t, err)
	assert.Nil(t, rawGet(t, store, "o1", id))
}

func TestApply_ForeignLocalIDIgnoredOutsidePush(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	// An unrelated unsynced row that happens to share the other device's local id.
	id := seed(t, store, tx{OwnerID: "o1", Payload: sale(42), LastModifiedAt: 50})

	for _, src := range []Source{FromPull, FromRealtime} {
		_, err := e.Apply(ctx, "o1", []tx{{LocalID: id, ServerID: int64(10 + src), Payload: sale(1), LastModifiedAt: 60}}, src)
		require.NoError(t, err)
	}

	mine := rawGet(t, store, "o1", id)
	assert.Zero(t, mine.ServerID)
	assert.Equal(t, 42.0, mine.Payload.Amount)

	list, err := store.List(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestApply_IdentityConflictIsSkipped(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 5, Payload: sale(1), LastModifiedAt: 100, SyncState: records.Synced})

	res, err := e.Apply(ctx, "o1", []tx{
		{LocalID: id, ServerID: 9, Payload: sale(2), LastModifiedAt: 200},
		{ServerID: 11, Payload: sale(3), LastModifiedAt: 200},
	}, FromPush)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicts)
	assert.Equal(t, 1, res.Inserted)

	got := rawGet(t, store, "o1", id)
	assert.Equal(t, int64(5), got.ServerID)
	assert.Equal(t, 1.0, got.Payload.Amount)
}

func TestResolve(t *testing.T) {
	_, store := newEngine(t)
	ctx := context.Background()

	bound := seed(t, store, tx{OwnerID: "o1", ServerID: 7, Payload: sale(1), LastModifiedAt: 1})
	fresh := seed(t, store, tx{OwnerID: "o1", Payload: sale(1), LastModifiedAt: 1})

	tests := []struct {
		name    string
		in      tx
		src     Source
		want    int64
		wantErr error
	}{
		{name: "by server id", in: tx{ServerID: 7}, src: FromPull, want: bound},
		{name: "server id wins over correlation", in: tx{ServerID: 7, LocalID: fresh}, src: FromPush, want: bound},
		{name: "by correlation", in: tx{ServerID: 8, LocalID: fresh}, src: FromPush, want: fresh},
		{name: "correlation ignored for pull", in: tx{ServerID: 8, LocalID: fresh}, src: FromPull},
		{name: "unknown", in: tx{ServerID: 99, LocalID: 12345}, src: FromPush},
		{name: "conflict", in: tx{ServerID: 8, LocalID: bound}, src: FromPush, wantErr: common.ErrIdentityConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Exclusive(ctx, func(ctx context.Context, repo localrecords.Repository[records.Transaction]) error {
				got, err := Resolve(ctx, repo, "o1", tt.in, tt.src)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
					return nil
				}
				require.NoError(t, err)
				if tt.want == 0 {
					assert.Nil(t, got)
				} else {
					require.NotNil(t, got)
					assert.Equal(t, tt.want, got.LocalID)
				}
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestApply_Monotonic(t *testing.T) {
	e, store := newEngine(t)
	ctx := context.Background()

	id := seed(t, store, tx{OwnerID: "o1", ServerID: 1, Payload: sale(1), LastModifiedAt: 100, SyncState: records.Synced})
	prev := int64(100)
	for _, lma := range []int64{150, 120, 300, 200, 300} {
		_, err := e.Apply(ctx, "o1", []tx{{ServerID: 1, Payload: sale(float64(lma)), LastModifiedAt: lma}}, FromRealtime)
		require.NoError(t, err)
		got := rawGet(t, store, "o1", id)
		assert.GreaterOrEqual(t, got.LastModifiedAt, prev)
		prev = got.LastModifiedAt
	}
	got := rawGet(t, store, "o1", id)
	assert.Equal(t, int64(300), got.LastModifiedAt)
	assert.Equal(t, 300.0, got.Payload.Amount)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "push", FromPush.String())
	assert.Equal(t, "pull", FromPull.String())
	assert.Equal(t, "realtime", FromRealtime.String())
	assert.Equal(t, "unknown", Source(9).String())
}
