package proto

import (
	"context"

	"google.golang.org/grpc"
)

const (
	SyncService_ServiceName = "shopsync.v1.SyncService"

	SyncService_Register_FullMethodName     = "/shopsync.v1.SyncService/Register"
	SyncService_Login_FullMethodName        = "/shopsync.v1.SyncService/Login"
	SyncService_RefreshToken_FullMethodName = "/shopsync.v1.SyncService/RefreshToken"
	SyncService_Push_FullMethodName         = "/shopsync.v1.SyncService/Push"
	SyncService_Pull_FullMethodName         = "/shopsync.v1.SyncService/Pull"
	SyncService_Subscribe_FullMethodName    = "/shopsync.v1.SyncService/Subscribe"
)

// SyncServiceServer is implemented by the gRPC server.
type SyncServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	Push(context.Context, *PushRequest) (*PushResponse, error)
	Pull(context.Context, *PullRequest) (*PullResponse, error)
	Subscribe(*SubscribeRequest, SyncService_SubscribeServer) error
}

type SyncService_SubscribeServer interface {
	Send(*SyncEvent) error
	grpc.ServerStream
}

type syncServiceSubscribeServer struct {
	grpc.ServerStream
}

func (x *syncServiceSubscribeServer) Send(m *SyncEvent) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterSyncServiceServer(s grpc.ServiceRegistrar, srv SyncServiceServer) {
	s.RegisterService(&SyncService_ServiceDesc, srv)
}

func unaryHandler[Req any, Resp any](method string, call func(SyncServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SyncServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SyncServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	m := new(SubscribeRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SyncServiceServer).Subscribe(m, &syncServiceSubscribeServer{stream})
}

// SyncService_ServiceDesc is the grpc.ServiceDesc for SyncService.
var SyncService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: SyncService_ServiceName,
	HandlerType: (*SyncServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Register",
			Handler:    unaryHandler(SyncService_Register_FullMethodName, SyncServiceServer.Register),
		},
		{
			MethodName: "Login",
			Handler:    unaryHandler(SyncService_Login_FullMethodName, SyncServiceServer.Login),
		},
		{
			MethodName: "RefreshToken",
			Handler:    unaryHandler(SyncService_RefreshToken_FullMethodName, SyncServiceServer.RefreshToken),
		},
		{
			MethodName: "Push",
			Handler:    unaryHandler(SyncService_Push_FullMethodName, SyncServiceServer.Push),
		},
		{
			MethodName: "Pull",
			Handler:    unaryHandler(SyncService_Pull_FullMethodName, SyncServiceServer.Pull),
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "shopsync/v1/sync.cbor",
}

// SyncServiceClient is the client API for SyncService. Every call is sent
// with the cbor content-subtype; callers do not need to pass it.
type SyncServiceClient interface {
	Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error)
	Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error)
	Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error)
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (SyncService_SubscribeClient, error)
}

type SyncService_SubscribeClient interface {
	Recv() (*SyncEvent, error)
	grpc.ClientStream
}

type syncServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSyncServiceClient(cc grpc.ClientConnInterface) SyncServiceClient {
	return &syncServiceClient{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, method, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *syncServiceClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, SyncService_Register_FullMethodName, in, opts)
}

func (c *syncServiceClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, SyncService_Login_FullMethodName, in, opts)
}

func (c *syncServiceClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	return invoke[RefreshTokenResponse](ctx, c.cc, SyncService_RefreshToken_FullMethodName, in, opts)
}

func (c *syncServiceClient) Push(ctx context.Context, in *PushRequest, opts ...grpc.CallOption) (*PushResponse, error) {
	return invoke[PushResponse](ctx, c.cc, SyncService_Push_FullMethodName, in, opts)
}

func (c *syncServiceClient) Pull(ctx context.Context, in *PullRequest, opts ...grpc.CallOption) (*PullResponse, error) {
	return invoke[PullResponse](ctx, c.cc, SyncService_Pull_FullMethodName, in, opts)
}

func (c *syncServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (SyncService_SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &SyncService_ServiceDesc.Streams[0], SyncService_Subscribe_FullMethodName, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	x := &syncServiceSubscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type syncServiceSubscribeClient struct {
	grpc.ClientStream
}

func (x *syncServiceSubscribeClient) Recv() (*SyncEvent, error) {
	m := new(SyncEvent)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
