package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/shopsync/internal/common"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus maps service errors to gRPC codes. Validation messages go back
// verbatim, internal ones do not.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrUnknownKind):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrRefreshTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrRefreshTokenExpired.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, common.ErrConcurrentUpdate):
		return status.Error(codes.Aborted, err.Error())
	default:
		s.logger.Error(ctx, "request failed", "method", method, "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) Register(ctx context.Context, req *pb.RegisterRequest) (*pb.RegisterResponse, error) {
	defer common.WipeByteArray(req.Password)

	user, err := s.users.Register(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Register", err)
	}

	s.logger.Info(ctx, "Registered", "username", user.UserName, "id", user.ID)
	return &pb.RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *pb.LoginRequest) (*pb.LoginResponse, error) {
	defer common.WipeByteArray(req.Password)

	tokens, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.toStatus(ctx, "Login", err)
	}
	return &pb.LoginResponse{UserID: tokens.UserID, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *pb.RefreshTokenRequest) (*pb.RefreshTokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.toStatus(ctx, "RefreshToken", err)
	}
	return &pb.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *pb.PushRequest) (*pb.PushResponse, error) {
	owner, _ := auth.UserIDFrom(ctx)
	resp, err := s.sync.Push(ctx, owner, auth.DeviceIDFrom(ctx), req.Kind, req.Records)
	if err != nil {
		return nil, s.toStatus(ctx, "Push", err)
	}
	return resp, nil
}

func (s *GRPCServer) Pull(ctx context.Context, req *pb.PullRequest) (*pb.PullResponse, error) {
	owner, _ := auth.UserIDFrom(ctx)
	resp, err := s.sync.Pull(ctx, owner, req.Kind, req.Watermark)
	if err != nil {
		return nil, s.toStatus(ctx, "Pull", err)
	}
	return resp, nil
}

// Subscribe streams the realtime events of (owner, kind) until the client
// leaves or the hub evicts it for falling behind.
func (s *GRPCServer) Subscribe(req *pb.SubscribeRequest, stream pb.SyncService_SubscribeServer) error {
	ctx := stream.Context()
	owner, _ := auth.UserIDFrom(ctx)
	device := auth.DeviceIDFrom(ctx)

	sub, err := s.sync.Subscribe(owner, req.Kind, device)
	if err != nil {
		return s.toStatus(ctx, "Subscribe", err)
	}
	defer s.sync.Unsubscribe(sub)

	s.logger.Debug(ctx, "subscriber connected", "owner", owner, "kind", req.Kind, "device", device)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopping:
			return status.Error(codes.Unavailable, "server shutting down")
		case ev, ok := <-sub.C():
			if !ok {
				if sub.Evicted() {
					return status.Error(codes.ResourceExhausted, "subscriber too slow, pull to catch up")
				}
				return status.Error(codes.Unavailable, "server shutting down")
			}
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}
