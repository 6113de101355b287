package client

import (
	"context"

	"github.com/dmitrijs2005/shopsync/internal/proto"
)

// Session is what a successful login yields.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// EventStream delivers realtime events until it returns an error.
type EventStream interface {
	Recv() (*proto.SyncEvent, error)
}

type Client interface {
	Close() error
	Register(ctx context.Context, username string, password []byte) (string, error)
	Login(ctx context.Context, username string, password []byte) (*Session, error)
	// Resume installs tokens saved from an earlier session.
	Resume(refreshToken string)
	// OnTokensRefreshed registers a callback for every token rotation.
	OnTokensRefreshed(fn func(refreshToken string))
	Ping(ctx context.Context) error
	Push(ctx context.Context, kind string, in []proto.WireRecord) (*proto.PushResponse, error)
	Pull(ctx context.Context, kind string, watermark *int64) (*proto.PullResponse, error)
	Subscribe(ctx context.Context, kind string) (EventStream, error)
}
