package cli

import (
	"bufio"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/client/apply"
	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/client/config"
	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopsync/internal/client/services"
	"github.com/dmitrijs2005/shopsync/internal/client/syncer"
	"github.com/dmitrijs2005/shopsync/internal/filex"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// Syncer is the part of the sync scheduler the CLI drives.
type Syncer interface {
	RunOnce(ctx context.Context, owner string) ([]syncer.Outcome, error)
	Run(ctx context.Context, owner string) error
	Pending(ctx context.Context, owner string) (map[records.Kind]int, error)
	Online() bool
	LastSync() time.Time
}

type App struct {
	config      *config.Config
	db          *sql.DB
	authService services.AuthService
	syncer      Syncer
	logger      logging.Logger

	transactions *localstore.Store[records.Transaction]
	products     *localstore.Store[records.Product]
	catalog      *localstore.Store[records.Service]

	identity *services.Identity
	reader   *bufio.Reader
	out      io.Writer

	syncMu   sync.Mutex
	stopSync context.CancelFunc
	syncDone chan struct{}
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewTextLogger(os.Stderr, slog.LevelInfo)

	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		logger.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}

	deviceID, err := services.DeviceID(ctx, metadata.NewSQLiteRepository(db))
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	api, err := client.NewSyncClient(c.ServerEndpointAddr, deviceID)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &App{
		config:       c,
		db:           db,
		authService:  services.NewAuthService(api, db, logger),
		logger:       logger,
		transactions: localstore.New[records.Transaction](db),
		products:     localstore.New[records.Product](db),
		catalog:      localstore.New[records.Service](db),
		reader:       bufio.NewReader(os.Stdin),
		out:          os.Stdout,
	}

	t := &deadlineTransport{Client: api, timeout: c.RequestTimeout}
	marks := syncer.NewWatermarks(metadata.NewSQLiteRepository(db))
	a.syncer = syncer.New(t,
		syncer.Config{CheckInterval: c.OnlineCheckInterval, SyncInterval: c.SyncInterval},
		logger,
		syncer.NewLane(a.transactions, apply.New(a.transactions, logger), t, marks, c.WatermarkOverlap, logger),
		syncer.NewLane(a.products, apply.New(a.products, logger), t, marks, c.WatermarkOverlap, logger),
		syncer.NewLane(a.catalog, apply.New(a.catalog, logger), t, marks, c.WatermarkOverlap, logger),
	)
	return a, nil
}

// deadlineTransport bounds unary calls by the configured request timeout.
// Realtime streams are long-lived and keep the caller's context.
type deadlineTransport struct {
	client.Client
	timeout time.Duration
}

func (d *deadlineTransport) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *deadlineTransport) Ping(ctx context.Context) error {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	return d.Client.Ping(ctx)
}

func (d *deadlineTransport) Push(ctx context.Context, kind string, in []proto.WireRecord) (*proto.PushResponse, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	return d.Client.Push(ctx, kind, in)
}

func (d *deadlineTransport) Pull(ctx context.Context, kind string, wm *int64) (*proto.PullResponse, error) {
	ctx, cancel := d.bound(ctx)
	defer cancel()
	return d.Client.Pull(ctx, kind, wm)
}

func (a *App) Run(ctx context.Context) {
	defer func() {
		a.haltSync()
		_ = a.authService.Close(ctx)
		_ = a.db.Close()
	}()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.identity != nil
}

func (a *App) owner() string {
	if a.identity == nil {
		return ""
	}
	return a.identity.UserID
}

func (a *App) mode() Mode {
	if a.syncer != nil && a.syncer.Online() {
		return ModeOnline
	}
	return ModeOffline
}

// startSync runs the scheduler for the signed-in owner in the background,
// replacing any previous run.
func (a *App) startSync(ctx context.Context) {
	a.haltSync()
	if a.syncer == nil || a.identity == nil {
		return
	}

	a.syncMu.Lock()
	defer a.syncMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.stopSync, a.syncDone = cancel, done
	owner := a.identity.UserID

	go func() {
		defer close(done)
		if err := a.syncer.Run(ctx, owner); err != nil {
			a.logger.Warn(ctx, "background sync stopped, please log in again", "error", err)
		}
	}()
}

func (a *App) haltSync() {
	a.syncMu.Lock()
	cancel, done := a.stopSync, a.syncDone
	a.stopSync, a.syncDone = nil, nil
	a.syncMu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
