package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/client/apply"
	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/sethvargo/go-retry"
)

// Transport is the part of the sync client a lane needs.
type Transport interface {
	Ping(ctx context.Context) error
	Push(ctx context.Context, kind string, in []proto.WireRecord) (*proto.PushResponse, error)
	Pull(ctx context.Context, kind string, watermark *int64) (*proto.PullResponse, error)
	Subscribe(ctx context.Context, kind string) (client.EventStream, error)
}

// Outcome reports one lane's part of a sync pass.
type Outcome struct {
	Kind   records.Kind
	Pushed bool
	Result apply.Result
}

// Lane syncs one record kind.
type Lane[P records.Payload] struct {
	kind      records.Kind
	store     *localstore.Store[P]
	engine    *apply.Engine[P]
	transport Transport
	marks     *Watermarks
	overlap   int64
	logger    logging.Logger

	// mu serializes Sync: a pull must not run while a push of the same
	// rows is waiting for its response.
	mu sync.Mutex

	newBackoff func() retry.Backoff
}

func NewLane[P records.Payload](store *localstore.Store[P], engine *apply.Engine[P], t Transport, marks *Watermarks, overlap time.Duration, logger logging.Logger) *Lane[P] {
	kind := records.KindOf[P]()
	return &Lane[P]{
		kind:      kind,
		store:     store,
		engine:    engine,
		transport: t,
		marks:     marks,
		overlap:   overlap.Milliseconds(),
		logger:    logger.With("module", "syncer", "kind", kind.String()),
		newBackoff: func() retry.Backoff {
			return retry.WithCappedDuration(time.Minute, retry.WithJitterPercent(10, retry.NewExponential(500*time.Millisecond)))
		},
	}
}

func (l *Lane[P]) Kind() records.Kind { return l.kind }

func (l *Lane[P]) Pending(ctx context.Context, owner string) (int, error) {
	return l.store.UnsyncedCount(ctx, owner)
}

// Push sends the unsynced batch and applies the resolved records. A failed
// push leaves the batch unsynced for the next attempt.
func (l *Lane[P]) Push(ctx context.Context, owner string) (apply.Result, error) {
	batch, err := l.store.UnsyncedBatch(ctx, owner)
	if err != nil || len(batch) == 0 {
		return apply.Result{}, err
	}
	wire, err := records.ToWireBatch(batch)
	if err != nil {
		return apply.Result{}, err
	}

	resp, err := l.transport.Push(ctx, l.kind.String(), wire)
	if err != nil {
		return apply.Result{}, err
	}
	return l.apply(ctx, owner, resp.Records, apply.FromPush)
}

// Pull fetches everything changed since the stored watermark (minus the
// overlap) and advances the watermark once the batch is applied.
func (l *Lane[P]) Pull(ctx context.Context, owner string) (apply.Result, error) {
	wm, err := l.marks.Get(ctx, owner, l.kind)
	if err != nil {
		return apply.Result{}, err
	}
	if wm != nil {
		v := max(*wm-l.overlap, 0)
		wm = &v
	}

	resp, err := l.transport.Pull(ctx, l.kind.String(), wm)
	if err != nil {
		return apply.Result{}, err
	}
	res, err := l.apply(ctx, owner, resp.Records, apply.FromPull)
	if err != nil {
		return res, err
	}
	if err := l.marks.Set(ctx, owner, l.kind, resp.ServerTime); err != nil {
		return res, err
	}
	return res, nil
}

// Sync pushes when there is local work and pulls otherwise, so a pull never
// races an in-flight push of the same rows.
func (l *Lane[P]) Sync(ctx context.Context, owner string) (Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := Outcome{Kind: l.kind}

	pending, err := l.Pending(ctx, owner)
	if err != nil {
		return out, err
	}
	if pending > 0 {
		out.Pushed = true
		out.Result, err = l.Push(ctx, owner)
	} else {
		out.Result, err = l.Pull(ctx, owner)
	}
	return out, err
}

func (l *Lane[P]) apply(ctx context.Context, owner string, in []proto.WireRecord, src apply.Source) (apply.Result, error) {
	recs, err := records.DecodeBatch[P](owner, in)
	if err != nil {
		return apply.Result{}, err
	}
	return l.engine.Apply(ctx, owner, recs, src)
}

// Listen applies realtime events until ctx ends, reconnecting with backoff.
// Every (re)connect is followed by a sync pass to pick up what was missed.
// It gives up only when the session is no longer authorized.
func (l *Lane[P]) Listen(ctx context.Context, owner string) error {
	b := l.newBackoff()
	for {
		err := l.listenOnce(ctx, owner, func() { b = l.newBackoff() })
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, client.ErrUnauthorized) {
			return err
		}

		delay, stop := b.Next()
		if stop {
			return err
		}
		if errors.Is(err, client.ErrEvicted) {
			l.logger.Warn(ctx, "realtime stream evicted, resubscribing")
		} else {
			l.logger.Debug(ctx, "realtime stream lost", "error", err, "retry_in", delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (l *Lane[P]) listenOnce(ctx context.Context, owner string, connected func()) error {
	stream, err := l.transport.Subscribe(ctx, l.kind.String())
	if err != nil {
		return err
	}
	if _, err := l.Sync(ctx, owner); err != nil {
		return err
	}
	connected()

	for {
		ev, err := stream.Recv()
		if err != nil {
			return err
		}
		res, err := l.apply(ctx, owner, ev.Records, apply.FromRealtime)
		if err != nil {
			l.logger.Error(ctx, "failed to apply realtime event", "error", err)
			continue
		}
		l.logger.Debug(ctx, "realtime event applied", "changed", res.Changed())
	}
}
