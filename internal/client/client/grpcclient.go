package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/common"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"golang.org/x/sync/singleflight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type GRPCClient struct {
	endpointURL string
	deviceID    string
	dialOptions []grpc.DialOption

	conn   *grpc.ClientConn
	client pb.SyncServiceClient
	health healthpb.HealthClient

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	onRefresh    func(refreshToken string)

	refreshGroup singleflight.Group
}

func withCredentials(ctx context.Context, token, deviceID string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	if deviceID != "" {
		md.Set(common.DeviceIDHeaderName, deviceID)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	return ok && st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	s.accessToken, s.refreshToken = access, refresh
	fn := s.onRefresh
	s.mu.Unlock()

	if fn != nil {
		fn(refresh)
	}
}

// refresh rotates the tokens after a call made with stale failed on expiry.
// Concurrent callers share one RefreshToken round trip; a caller whose stale
// token was already replaced just retries.
func (s *GRPCClient) refresh(ctx context.Context, stale string) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (any, error) {
		access, refresh := s.tokens()
		if access != stale {
			return nil, nil
		}
		if refresh == "" {
			return nil, ErrUnauthorized
		}

		resp, err := s.client.RefreshToken(ctx, &pb.RefreshTokenRequest{RefreshToken: refresh})
		if err != nil {
			return nil, err
		}
		s.setTokens(resp.AccessToken, resp.RefreshToken)
		return nil, nil
	})
	return err
}

// currentToken returns the access token, first exchanging the refresh token
// when a resumed session has none yet.
func (s *GRPCClient) currentToken(ctx context.Context) (string, error) {
	token, refresh := s.tokens()
	if token != "" || refresh == "" {
		return token, nil
	}
	if err := s.refresh(ctx, ""); err != nil {
		return "", err
	}
	token, _ = s.tokens()
	return token, nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == pb.SyncService_RefreshToken_FullMethodName || strings.HasPrefix(method, "/grpc.health.v1.Health/") {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token, err := s.currentToken(ctx)
	if err != nil {
		return err
	}
	err = invoker(withCredentials(ctx, token, s.deviceID), method, req, reply, cc, opts...)
	if err == nil || !isTokenExpired(err) {
		return err
	}

	if rerr := s.refresh(ctx, token); rerr != nil {
		return rerr
	}

	token, _ = s.tokens()
	return invoker(withCredentials(ctx, token, s.deviceID), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamCredentialsInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	token, _ := s.tokens()
	return streamer(withCredentials(ctx, token, s.deviceID), desc, cc, method, opts...)
}

// NewSyncClient connects to endpointURL as deviceID. Extra dial options are
// appended after the defaults (tests pass a bufconn dialer).
func NewSyncClient(endpointURL, deviceID string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, deviceID: deviceID, dialOptions: opts}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamCredentialsInterceptor),
	}, s.dialOptions...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewSyncServiceClient(conn)
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Register(ctx context.Context, userName string, password []byte) (string, error) {
	resp, err := s.client.Register(ctx, &pb.RegisterRequest{Username: userName, Password: password})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.UserID, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName string, password []byte) (*Session, error) {
	resp, err := s.client.Login(ctx, &pb.LoginRequest{Username: userName, Password: password})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.setTokens(resp.AccessToken, resp.RefreshToken)
	return &Session{UserID: resp.UserID, AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// Resume starts from a saved refresh token; the first authenticated call
// exchanges it for an access token.
func (s *GRPCClient) Resume(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.refreshToken = refreshToken
}

func (s *GRPCClient) OnTokensRefreshed(fn func(refreshToken string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

// Ping asks the server's health service whether the sync service is serving.
func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: pb.SyncService_ServiceName})
	if err != nil {
		return s.mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Push(ctx context.Context, kind string, in []pb.WireRecord) (*pb.PushResponse, error) {
	resp, err := s.client.Push(ctx, &pb.PushRequest{Kind: kind, Records: in})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Pull(ctx context.Context, kind string, watermark *int64) (*pb.PullResponse, error) {
	resp, err := s.client.Pull(ctx, &pb.PullRequest{Kind: kind, Watermark: watermark})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Subscribe opens the realtime stream for kind. The server only checks the
// token once the stream starts, so an expiry shows up on the first Recv;
// the stream then refreshes and reopens itself once.
func (s *GRPCClient) Subscribe(ctx context.Context, kind string) (EventStream, error) {
	es := &eventStream{c: s, ctx: ctx, kind: kind}
	if err := es.open(); err != nil {
		return nil, s.mapError(err)
	}
	return es, nil
}

type eventStream struct {
	c        *GRPCClient
	ctx      context.Context
	kind     string
	token    string
	stream   pb.SyncService_SubscribeClient
	received bool
	retried  bool
}

func (e *eventStream) open() error {
	token, err := e.c.currentToken(e.ctx)
	if err != nil {
		return err
	}
	e.token = token
	st, err := e.c.client.Subscribe(e.ctx, &pb.SubscribeRequest{Kind: e.kind})
	if err != nil {
		return err
	}
	e.stream = st
	return nil
}

func (e *eventStream) Recv() (*pb.SyncEvent, error) {
	ev, err := e.stream.Recv()
	if err == nil {
		e.received = true
		return ev, nil
	}
	if !e.received && !e.retried && isTokenExpired(err) {
		e.retried = true
		if rerr := e.c.refresh(e.ctx, e.token); rerr != nil {
			return nil, e.c.mapError(rerr)
		}
		if oerr := e.open(); oerr != nil {
			return nil, e.c.mapError(oerr)
		}
		return e.Recv()
	}
	return nil, e.c.mapError(err)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnauthorized) {
		return err
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unauthenticated:
		if st.Message() == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.ResourceExhausted:
		return ErrEvicted
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrValidation, st.Message())
	case codes.AlreadyExists:
		return common.ErrAlreadyExists
	case codes.Aborted:
		return fmt.Errorf("%w: %s", common.ErrConcurrentUpdate, st.Message())
	case codes.Canceled:
		return context.Canceled
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
