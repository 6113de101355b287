package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/dmitrijs2005/shopsync/internal/server/reconcile"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/repomanager"
)

// Pipeline is the push/pull pair for one record kind.
type Pipeline interface {
	Kind() records.Kind
	Push(ctx context.Context, owner, device string, in []proto.WireRecord) (*proto.PushResponse, error)
	Pull(ctx context.Context, owner string, watermark *int64) (*proto.PullResponse, error)
}

// SyncService routes sync calls to the pipeline of the requested kind. The
// owner always comes from the caller's credentials, never from a request body.
type SyncService struct {
	pipelines map[records.Kind]Pipeline
	hub       *realtime.Hub
	logger    logging.Logger
}

func NewSyncService(db *sql.DB, m repomanager.RepositoryManager, hub *realtime.Hub, logger logging.Logger, maxRetries int) *SyncService {
	return NewSyncServiceWithPipelines(hub, logger,
		reconcile.New(m.Transactions(db), hub, logger, maxRetries),
		reconcile.New(m.Products(db), hub, logger, maxRetries),
		reconcile.New(m.Services(db), hub, logger, maxRetries),
	)
}

func NewSyncServiceWithPipelines(hub *realtime.Hub, logger logging.Logger, ps ...Pipeline) *SyncService {
	s := &SyncService{
		pipelines: make(map[records.Kind]Pipeline, len(ps)),
		hub:       hub,
		logger:    logger.With("module", "sync_service"),
	}
	for _, p := range ps {
		s.pipelines[p.Kind()] = p
	}
	return s
}

func (s *SyncService) pipeline(kind string) (Pipeline, error) {
	k, err := records.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	p, ok := s.pipelines[k]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownKind, kind)
	}
	return p, nil
}

func (s *SyncService) Push(ctx context.Context, owner, device, kind string, in []proto.WireRecord) (*proto.PushResponse, error) {
	if owner == "" {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.pipeline(kind)
	if err != nil {
		return nil, err
	}
	resp, err := p.Push(ctx, owner, device, in)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "push", "owner", owner, "device", device, "kind", kind, "records", len(resp.Records))
	return resp, nil
}

func (s *SyncService) Pull(ctx context.Context, owner, kind string, watermark *int64) (*proto.PullResponse, error) {
	if owner == "" {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.pipeline(kind)
	if err != nil {
		return nil, err
	}
	return p.Pull(ctx, owner, watermark)
}

// Subscribe opens the realtime channel of (owner, kind) for device.
func (s *SyncService) Subscribe(owner, kind, device string) (*realtime.Subscription, error) {
	if owner == "" {
		return nil, common.ErrorUnauthorized
	}
	p, err := s.pipeline(kind)
	if err != nil {
		return nil, err
	}
	return s.hub.Subscribe(owner, p.Kind(), device), nil
}

func (s *SyncService) Unsubscribe(sub *realtime.Subscription) {
	s.hub.Unsubscribe(sub)
}
