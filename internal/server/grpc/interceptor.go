package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/shopsync/internal/common"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// publicMethods need no access token.
var publicMethods = map[string]struct{}{
	pb.SyncService_Register_FullMethodName:     {},
	pb.SyncService_Login_FullMethodName:        {},
	pb.SyncService_RefreshToken_FullMethodName: {},
}

func isPublic(method string) bool {
	if _, ok := publicMethods[method]; ok {
		return true
	}
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func firstHeader(md metadata.MD, name string) string {
	if values := md.Get(name); len(values) > 0 {
		return values[0]
	}
	return ""
}

// authenticate puts the owner and device from the call metadata into ctx.
// An expired token is reported with the common.ErrTokenExpired message so
// clients know a refresh will help.
func (s *GRPCServer) authenticate(ctx context.Context) (context.Context, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	accessToken := firstHeader(md, common.AccessTokenHeaderName)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	userID, err := auth.GetUserIDFromToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}

	ctx = auth.WithUserID(ctx, userID)
	return auth.WithDeviceID(ctx, firstHeader(md, common.DeviceIDHeaderName)), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if isPublic(info.FullMethod) {
		return handler(ctx, req)
	}
	ctx, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// authStream swaps the stream context for the authenticated one.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	if isPublic(info.FullMethod) {
		return handler(srv, ss)
	}
	ctx, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
}
