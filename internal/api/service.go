package api

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/grpcx"
	"google.golang.org/grpc"
)

const ServiceName = "gophnotes.Notes"

// Full method names, as seen by interceptors.
const (
	MethodPing                = "/" + ServiceName + "/Ping"
	MethodRegister            = "/" + ServiceName + "/Register"
	MethodGetSalt             = "/" + ServiceName + "/GetSalt"
	MethodLogin               = "/" + ServiceName + "/Login"
	MethodRefreshToken        = "/" + ServiceName + "/RefreshToken"
	MethodGetWrappedKey       = "/" + ServiceName + "/GetWrappedKey"
	MethodUpdateWrappedKey    = "/" + ServiceName + "/UpdateWrappedKey"
	MethodSaveNote            = "/" + ServiceName + "/SaveNote"
	MethodDeleteNote          = "/" + ServiceName + "/DeleteNote"
	MethodListNotes           = "/" + ServiceName + "/ListNotes"
	MethodGetBoard            = "/" + ServiceName + "/GetBoard"
	MethodSaveBoard           = "/" + ServiceName + "/SaveBoard"
	MethodPoll                = "/" + ServiceName + "/Poll"
	MethodListSessions        = "/" + ServiceName + "/ListSessions"
	MethodRevokeSession       = "/" + ServiceName + "/RevokeSession"
	MethodRevokeOtherSessions = "/" + ServiceName + "/RevokeOtherSessions"
	MethodLogout              = "/" + ServiceName + "/Logout"
	MethodPresignBackup       = "/" + ServiceName + "/PresignBackup"
	MethodWatch               = "/" + ServiceName + "/Watch"
)

// NotesServer is implemented by the server transport.
type NotesServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	GetSalt(context.Context, *GetSaltRequest) (*GetSaltResponse, error)
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	RefreshToken(context.Context, *RefreshTokenRequest) (*RefreshTokenResponse, error)
	GetWrappedKey(context.Context, *GetWrappedKeyRequest) (*GetWrappedKeyResponse, error)
	UpdateWrappedKey(context.Context, *UpdateWrappedKeyRequest) (*UpdateWrappedKeyResponse, error)
	SaveNote(context.Context, *SaveNoteRequest) (*SaveNoteResponse, error)
	DeleteNote(context.Context, *DeleteNoteRequest) (*DeleteNoteResponse, error)
	ListNotes(context.Context, *ListNotesRequest) (*ListNotesResponse, error)
	GetBoard(context.Context, *GetBoardRequest) (*GetBoardResponse, error)
	SaveBoard(context.Context, *SaveBoardRequest) (*SaveBoardResponse, error)
	Poll(context.Context, *PollRequest) (*PollResponse, error)
	ListSessions(context.Context, *ListSessionsRequest) (*ListSessionsResponse, error)
	RevokeSession(context.Context, *RevokeSessionRequest) (*RevokeSessionResponse, error)
	RevokeOtherSessions(context.Context, *RevokeOtherSessionsRequest) (*RevokeOtherSessionsResponse, error)
	Logout(context.Context, *LogoutRequest) (*LogoutResponse, error)
	PresignBackup(context.Context, *PresignBackupRequest) (*PresignBackupResponse, error)
	Watch(*WatchRequest, grpc.ServerStreamingServer[WatchEvent]) error
}

func unary[Req, Resp any](name string, call func(NotesServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(NotesServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(NotesServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(NotesServer).Watch(in, &grpc.GenericServerStream[WatchRequest, WatchEvent]{ServerStream: stream})
}

// ServiceDesc describes the Notes service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*NotesServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Ping", NotesServer.Ping),
		unary("Register", NotesServer.Register),
		unary("GetSalt", NotesServer.GetSalt),
		unary("Login", NotesServer.Login),
		unary("RefreshToken", NotesServer.RefreshToken),
		unary("GetWrappedKey", NotesServer.GetWrappedKey),
		unary("UpdateWrappedKey", NotesServer.UpdateWrappedKey),
		unary("SaveNote", NotesServer.SaveNote),
		unary("DeleteNote", NotesServer.DeleteNote),
		unary("ListNotes", NotesServer.ListNotes),
		unary("GetBoard", NotesServer.GetBoard),
		unary("SaveBoard", NotesServer.SaveBoard),
		unary("Poll", NotesServer.Poll),
		unary("ListSessions", NotesServer.ListSessions),
		unary("RevokeSession", NotesServer.RevokeSession),
		unary("RevokeOtherSessions", NotesServer.RevokeOtherSessions),
		unary("Logout", NotesServer.Logout),
		unary("PresignBackup", NotesServer.PresignBackup),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "internal/api/service.go",
}

func RegisterNotesServer(s grpc.ServiceRegistrar, srv NotesServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// NotesClient is the client API of the Notes service. Every call uses the
// JSON codec.
type NotesClient struct {
	cc grpc.ClientConnInterface
}

func NewNotesClient(cc grpc.ClientConnInterface) *NotesClient {
	return &NotesClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpcx.CallOption()}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *NotesClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, MethodPing, in, opts)
}

func (c *NotesClient) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c.cc, MethodRegister, in, opts)
}

func (c *NotesClient) GetSalt(ctx context.Context, in *GetSaltRequest, opts ...grpc.CallOption) (*GetSaltResponse, error) {
	return invoke[GetSaltResponse](ctx, c.cc, MethodGetSalt, in, opts)
}

func (c *NotesClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodLogin, in, opts)
}

func (c *NotesClient) RefreshToken(ctx context.Context, in *RefreshTokenRequest, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	return invoke[RefreshTokenResponse](ctx, c.cc, MethodRefreshToken, in, opts)
}

func (c *NotesClient) GetWrappedKey(ctx context.Context, in *GetWrappedKeyRequest, opts ...grpc.CallOption) (*GetWrappedKeyResponse, error) {
	return invoke[GetWrappedKeyResponse](ctx, c.cc, MethodGetWrappedKey, in, opts)
}

func (c *NotesClient) UpdateWrappedKey(ctx context.Context, in *UpdateWrappedKeyRequest, opts ...grpc.CallOption) (*UpdateWrappedKeyResponse, error) {
	return invoke[UpdateWrappedKeyResponse](ctx, c.cc, MethodUpdateWrappedKey, in, opts)
}

func (c *NotesClient) SaveNote(ctx context.Context, in *SaveNoteRequest, opts ...grpc.CallOption) (*SaveNoteResponse, error) {
	return invoke[SaveNoteResponse](ctx, c.cc, MethodSaveNote, in, opts)
}

func (c *NotesClient) DeleteNote(ctx context.Context, in *DeleteNoteRequest, opts ...grpc.CallOption) (*DeleteNoteResponse, error) {
	return invoke[DeleteNoteResponse](ctx, c.cc, MethodDeleteNote, in, opts)
}

func (c *NotesClient) ListNotes(ctx context.Context, in *ListNotesRequest, opts ...grpc.CallOption) (*ListNotesResponse, error) {
	return invoke[ListNotesResponse](ctx, c.cc, MethodListNotes, in, opts)
}

func (c *NotesClient) GetBoard(ctx context.Context, in *GetBoardRequest, opts ...grpc.CallOption) (*GetBoardResponse, error) {
	return invoke[GetBoardResponse](ctx, c.cc, MethodGetBoard, in, opts)
}

func (c *NotesClient) SaveBoard(ctx context.Context, in *SaveBoardRequest, opts ...grpc.CallOption) (*SaveBoardResponse, error) {
	return invoke[SaveBoardResponse](ctx, c.cc, MethodSaveBoard, in, opts)
}

func (c *NotesClient) Poll(ctx context.Context, in *PollRequest, opts ...grpc.CallOption) (*PollResponse, error) {
	return invoke[PollResponse](ctx, c.cc, MethodPoll, in, opts)
}

func (c *NotesClient) ListSessions(ctx context.Context, in *ListSessionsRequest, opts ...grpc.CallOption) (*ListSessionsResponse, error) {
	return invoke[ListSessionsResponse](ctx, c.cc, MethodListSessions, in, opts)
}

func (c *NotesClient) RevokeSession(ctx context.Context, in *RevokeSessionRequest, opts ...grpc.CallOption) (*RevokeSessionResponse, error) {
	return invoke[RevokeSessionResponse](ctx, c.cc, MethodRevokeSession, in, opts)
}

func (c *NotesClient) RevokeOtherSessions(ctx context.Context, in *RevokeOtherSessionsRequest, opts ...grpc.CallOption) (*RevokeOtherSessionsResponse, error) {
	return invoke[RevokeOtherSessionsResponse](ctx, c.cc, MethodRevokeOtherSessions, in, opts)
}

func (c *NotesClient) Logout(ctx context.Context, in *LogoutRequest, opts ...grpc.CallOption) (*LogoutResponse, error) {
	return invoke[LogoutResponse](ctx, c.cc, MethodLogout, in, opts)
}

func (c *NotesClient) PresignBackup(ctx context.Context, in *PresignBackupRequest, opts ...grpc.CallOption) (*PresignBackupResponse, error) {
	return invoke[PresignBackupResponse](ctx, c.cc, MethodPresignBackup, in, opts)
}

// Watch opens the server stream of change and account events.
func (c *NotesClient) Watch(ctx context.Context, in *WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[WatchEvent], error) {
	opts = append([]grpc.CallOption{grpcx.CallOption()}, opts...)
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], MethodWatch, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[WatchRequest, WatchEvent]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
