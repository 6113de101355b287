// Package grpc exposes the sync services over gRPC: auth, push, pull and the
// realtime Subscribe stream, plus the standard health service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/shopsync/internal/logging"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/server/models"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/dmitrijs2005/shopsync/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type UserService interface {
	Register(ctx context.Context, username string, password []byte) (*models.User, error)
	Login(ctx context.Context, username string, password []byte) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

type SyncService interface {
	Push(ctx context.Context, owner, device, kind string, in []pb.WireRecord) (*pb.PushResponse, error)
	Pull(ctx context.Context, owner, kind string, watermark *int64) (*pb.PullResponse, error)
	Subscribe(owner, kind, device string) (*realtime.Subscription, error)
	Unsubscribe(sub *realtime.Subscription)
}

type GRPCServer struct {
	address   string
	users     UserService
	sync      SyncService
	logger    logging.Logger
	jwtSecret []byte
	// stopping is closed on shutdown so open Subscribe streams end and
	// GracefulStop does not wait on them.
	stopping chan struct{}
}

func NewGRPCServer(a string, l logging.Logger, us UserService, ss SyncService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		users:     us,
		sync:      ss,
		jwtSecret: []byte(secretKey),
		stopping:  make(chan struct{}),
	}
}

// Run listens on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis and stops gracefully when ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)

	pb.RegisterSyncServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(pb.SyncService_ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		hs.Shutdown()
		close(s.stopping)
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	<-stopped
	return nil
}
