// Package server wires the sync server together: storage, services, the
// gRPC endpoint and the websocket gateway, and runs them until a signal.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/dmitrijs2005/shopsync/internal/server/config"
	gs "github.com/dmitrijs2005/shopsync/internal/server/grpc"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/shopsync/internal/server/services"
	"github.com/dmitrijs2005/shopsync/internal/server/ws"
	"golang.org/x/sync/errgroup"
)

const tokenPurgeInterval = time.Hour

type App struct {
	config      *config.Config
	logger      logging.Logger
	db          *sql.DB
	hub         *realtime.Hub
	userService *services.UserService
	syncService *services.SyncService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db init error: %w", err)
	}

	hub := realtime.NewHub(c.SubscriberBufferSize, logger)

	return &App{
		config:      c,
		logger:      logger,
		db:          db,
		hub:         hub,
		userService: services.NewUserService(db, m, c),
		syncService: services.NewSyncService(db, m, hub, logger, c.ReconcileMaxRetries),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// purgeTokens drops expired refresh tokens until ctx is done.
func (app *App) purgeTokens(ctx context.Context) error {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := app.userService.PurgeExpiredTokens(ctx)
			if err != nil {
				app.logger.Warn(ctx, "refresh token purge failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "purged expired refresh tokens", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	grpcServer := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.syncService, app.config.SecretKey)
	gateway := ws.NewGateway(app.config.EndpointAddrWS, app.syncService, app.config.SecretKey, ws.DefaultConfig(), app.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return grpcServer.Run(ctx) })
	g.Go(func() error { return gateway.Run(ctx) })
	g.Go(func() error { return app.purgeTokens(ctx) })

	err := g.Wait()

	app.hub.Close()
	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(context.Background(), "db close error", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
