// Package syncer schedules client synchronization: one lane per record
// kind, a periodic push-else-pull pass while the server is reachable and a
// realtime listener per lane.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"golang.org/x/sync/errgroup"
)

// SyncLane is implemented by *Lane for every payload type.
type SyncLane interface {
	Kind() records.Kind
	Pending(ctx context.Context, owner string) (int, error)
	Sync(ctx context.Context, owner string) (Outcome, error)
	Listen(ctx context.Context, owner string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	CheckInterval time.Duration
	SyncInterval  time.Duration
}

type Syncer struct {
	pinger Pinger
	lanes  []SyncLane
	cfg    Config
	logger logging.Logger

	online   atomic.Bool
	lastSync atomic.Int64
	runMu    sync.Mutex
}

func New(p Pinger, cfg Config, logger logging.Logger, lanes ...SyncLane) *Syncer {
	return &Syncer{
		pinger: p,
		lanes:  lanes,
		cfg:    cfg,
		logger: logger.With("module", "syncer"),
	}
}

// Online reports the result of the latest connectivity check.
func (s *Syncer) Online() bool { return s.online.Load() }

// LastSync is the wall time of the last completed pass, zero if none.
func (s *Syncer) LastSync() time.Time {
	v := s.lastSync.Load()
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v)
}

// Pending returns the unsynced count per kind.
func (s *Syncer) Pending(ctx context.Context, owner string) (map[records.Kind]int, error) {
	out := make(map[records.Kind]int, len(s.lanes))
	for _, l := range s.lanes {
		n, err := l.Pending(ctx, owner)
		if err != nil {
			return nil, err
		}
		out[l.Kind()] = n
	}
	return out, nil
}

// RunOnce checks connectivity and then runs one pass on every lane. Lanes
// are independent: a failing lane does not stop the others.
func (s *Syncer) RunOnce(ctx context.Context, owner string) ([]Outcome, error) {
	if err := s.pinger.Ping(ctx); err != nil {
		s.online.Store(false)
		return nil, fmt.Errorf("%w: %w", client.ErrUnavailable, err)
	}
	s.online.Store(true)
	return s.pass(ctx, owner)
}

func (s *Syncer) pass(ctx context.Context, owner string) ([]Outcome, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	outcomes := make([]Outcome, len(s.lanes))
	errs := make([]error, len(s.lanes))

	var g errgroup.Group
	for i, l := range s.lanes {
		g.Go(func() error {
			out, err := l.Sync(ctx, owner)
			outcomes[i] = out
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", l.Kind(), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return outcomes, err
	}
	s.lastSync.Store(time.Now().UnixMilli())
	return outcomes, nil
}

// Run keeps owner's data in sync until ctx is cancelled. A pass runs when
// connectivity comes back and every SyncInterval while online. It returns
// early only if a listener reports the session is no longer authorized.
func (s *Syncer) Run(ctx context.Context, owner string) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, l := range s.lanes {
		g.Go(func() error {
			return l.Listen(ctx, owner)
		})
	}

	g.Go(func() error {
		s.tick(ctx, owner)

		ticker := time.NewTicker(s.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				s.tick(ctx, owner)
			}
		}
	})

	return g.Wait()
}

func (s *Syncer) tick(ctx context.Context, owner string) {
	wasOnline := s.online.Load()
	if err := s.pinger.Ping(ctx); err != nil {
		s.online.Store(false)
		if wasOnline {
			s.logger.Info(ctx, "server unreachable, working offline", "error", err)
		}
		return
	}
	s.online.Store(true)

	due := time.Since(s.LastSync()) >= s.cfg.SyncInterval
	if wasOnline && !due {
		return
	}
	if !wasOnline {
		s.logger.Info(ctx, "server reachable, syncing")
	}

	outcomes, err := s.pass(ctx, owner)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn(ctx, "sync pass failed", "error", err)
		}
		return
	}
	for _, o := range outcomes {
		if o.Result.Changed() > 0 {
			s.logger.Debug(ctx, "sync pass", "kind", o.Kind.String(), "pushed", o.Pushed,
				"inserted", o.Result.Inserted, "updated", o.Result.Updated, "deleted", o.Result.Deleted)
		}
	}
}
