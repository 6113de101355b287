package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const testSecret = "super-secret"

func newTestServer() *GRPCServer {
	return NewGRPCServer("", logging.Nop{}, &fakeUsers{}, &fakeSync{}, testSecret)
}

func incoming(pairs ...string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(pairs...))
}

func token(t *testing.T, user string, validity time.Duration) string {
	t.Helper()
	tok, err := auth.GenerateToken(user, []byte(testSecret), validity)
	require.NoError(t, err)
	return tok
}

func TestInterceptor_PublicMethodsSkipAuth(t *testing.T) {
	s := newTestServer()

	for _, m := range []string{pb.SyncService_Login_FullMethodName, pb.SyncService_Register_FullMethodName,
		pb.SyncService_RefreshToken_FullMethodName, "/grpc.health.v1.Health/Check"} {
		called := false
		_, err := s.accessTokenInterceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: m},
			func(ctx context.Context, req any) (any, error) {
				called = true
				return "ok", nil
			})
		require.NoError(t, err, m)
		assert.True(t, called, m)
	}
}

func TestInterceptor_ProtectedMethods(t *testing.T) {
	s := newTestServer()
	info := &grpc.UnaryServerInfo{FullMethod: pb.SyncService_Push_FullMethodName}
	never := func(ctx context.Context, req any) (any, error) {
		t.Fatal("handler must not run")
		return nil, nil
	}

	tests := []struct {
		name string
		ctx  context.Context
		msg  string
	}{
		{"missing token", context.Background(), "missing token"},
		{"garbage token", incoming(common.AccessTokenHeaderName, "not-a-jwt"), common.ErrInvalidToken.Error()},
		{"expired token", incoming(common.AccessTokenHeaderName, token(t, "u1", -time.Second)), common.ErrTokenExpired.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, never)
			require.Error(t, err)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
			assert.Equal(t, tt.msg, status.Convert(err).Message())
		})
	}
}

func TestInterceptor_ValidTokenSetsOwnerAndDevice(t *testing.T) {
	s := newTestServer()
	ctx := incoming(common.AccessTokenHeaderName, token(t, "user-123", time.Hour), common.DeviceIDHeaderName, "dev-1")

	var owner, device string
	_, err := s.accessTokenInterceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: pb.SyncService_Pull_FullMethodName},
		func(ctx context.Context, req any) (any, error) {
			owner, _ = auth.UserIDFrom(ctx)
			device = auth.DeviceIDFrom(ctx)
			return "ok", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "user-123", owner)
	assert.Equal(t, "dev-1", device)
}

type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (f *fakeServerStream) Context() context.Context { return f.ctx }

func TestStreamInterceptor(t *testing.T) {
	s := newTestServer()
	info := &grpc.StreamServerInfo{FullMethod: pb.SyncService_Subscribe_FullMethodName, IsServerStream: true}

	err := s.streamAccessTokenInterceptor(nil, &fakeServerStream{ctx: context.Background()}, info,
		func(srv any, stream grpc.ServerStream) error {
			t.Fatal("handler must not run")
			return nil
		})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := incoming(common.AccessTokenHeaderName, token(t, "u9", time.Hour))
	var owner string
	err = s.streamAccessTokenInterceptor(nil, &fakeServerStream{ctx: ctx}, info,
		func(srv any, stream grpc.ServerStream) error {
			owner, _ = auth.UserIDFrom(stream.Context())
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, "u9", owner)
}
