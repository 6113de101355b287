package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	pb "github.com/dmitrijs2005/shopsync/internal/proto"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/auth"
	"github.com/dmitrijs2005/shopsync/internal/server/models"
	"github.com/dmitrijs2005/shopsync/internal/server/realtime"
	"github.com/dmitrijs2005/shopsync/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeUsers struct {
	regErr     error
	loginErr   error
	refreshErr error
	gotPass    []byte
}

func (f *fakeUsers) Register(_ context.Context, username string, password []byte) (*models.User, error) {
	f.gotPass = password
	if f.regErr != nil {
		return nil, f.regErr
	}
	return &models.User{ID: "u1", UserName: username}, nil
}

func (f *fakeUsers) Login(_ context.Context, _ string, password []byte) (*services.TokenPair, error) {
	f.gotPass = password
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return &services.TokenPair{UserID: "u1", AccessToken: "a", RefreshToken: "r"}, nil
}

func (f *fakeUsers) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &services.TokenPair{UserID: "u1", AccessToken: "a2", RefreshToken: "r2"}, nil
}

// fakeSync records the owner it was called with and serves Subscribe from a
// real hub.
type fakeSync struct {
	hub       *realtime.Hub
	err       error
	gotOwner  string
	gotDevice string
}

func (f *fakeSync) Push(_ context.Context, owner, device, _ string, in []pb.WireRecord) (*pb.PushResponse, error) {
	f.gotOwner, f.gotDevice = owner, device
	if f.err != nil {
		return nil, f.err
	}
	return &pb.PushResponse{Records: in, ServerTime: 5}, nil
}

func (f *fakeSync) Pull(_ context.Context, owner, _ string, _ *int64) (*pb.PullResponse, error) {
	f.gotOwner = owner
	if f.err != nil {
		return nil, f.err
	}
	return &pb.PullResponse{ServerTime: 6}, nil
}

func (f *fakeSync) Subscribe(owner, kind, device string) (*realtime.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	k, err := records.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	return f.hub.Subscribe(owner, k, device), nil
}

func (f *fakeSync) Unsubscribe(sub *realtime.Subscription) { f.hub.Unsubscribe(sub) }

func authed(owner, device string) context.Context {
	return auth.WithDeviceID(auth.WithUserID(context.Background(), owner), device)
}

func TestRegisterAndLogin_WipePassword(t *testing.T) {
	users := &fakeUsers{}
	s := NewGRPCServer("", logging.Nop{}, users, &fakeSync{}, testSecret)

	resp, err := s.Register(context.Background(), &pb.RegisterRequest{Username: "alice", Password: []byte("secret1")})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, make([]byte, 7), users.gotPass)

	login, err := s.Login(context.Background(), &pb.LoginRequest{Username: "alice", Password: []byte("secret1")})
	require.NoError(t, err)
	assert.Equal(t, "a", login.AccessToken)
	assert.Equal(t, "u1", login.UserID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{&records.ValidationError{Index: 2, Field: "amount", Reason: "must not be negative"}, codes.InvalidArgument},
		{fmt.Errorf("wrapped: %w", common.ErrUnknownKind), codes.InvalidArgument},
		{common.ErrAlreadyExists, codes.AlreadyExists},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrRefreshTokenExpired, codes.Unauthenticated},
		{common.ErrConcurrentUpdate, codes.Aborted},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("db exploded"), codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			s := NewGRPCServer("", logging.Nop{}, &fakeUsers{}, &fakeSync{err: tt.err}, testSecret)
			_, err := s.Push(authed("o1", "d1"), &pb.PushRequest{Kind: "product"})
			assert.Equal(t, tt.code, status.Code(err))
		})
	}
}

func TestErrorMapping_InternalHidesDetails(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, &fakeUsers{loginErr: errors.New("password column missing")}, &fakeSync{}, testSecret)

	_, err := s.Login(context.Background(), &pb.LoginRequest{Username: "u"})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, status.Convert(err).Message(), "password column")
}

func TestPushAndPull_UseAuthenticatedOwner(t *testing.T) {
	sync := &fakeSync{}
	s := NewGRPCServer("", logging.Nop{}, &fakeUsers{}, sync, testSecret)

	resp, err := s.Push(authed("owner-7", "dev-3"), &pb.PushRequest{Kind: "service", Records: []pb.WireRecord{{LocalID: 1, LastModifiedAt: 2}}})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 1)
	assert.Equal(t, "owner-7", sync.gotOwner)
	assert.Equal(t, "dev-3", sync.gotDevice)

	pull, err := s.Pull(authed("owner-8", ""), &pb.PullRequest{Kind: "service"})
	require.NoError(t, err)
	assert.Equal(t, int64(6), pull.ServerTime)
	assert.Equal(t, "owner-8", sync.gotOwner)
}
