package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const identityKey ctxKey = "identity"

// publicMethods can be called without an access token.
var publicMethods = map[string]bool{
	api.MethodPing:         true,
	api.MethodRegister:     true,
	api.MethodGetSalt:      true,
	api.MethodLogin:        true,
	api.MethodRefreshToken: true,
}

func withIdentity(ctx context.Context, id auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(auth.Identity)
	return id, ok
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// authenticate validates the access token of the call and checks that its
// session still exists. An expired token is reported with the ErrTokenExpired
// message so the client knows to refresh.
func (s *GRPCServer) authenticate(ctx context.Context) (auth.Identity, error) {
	token := metadataValue(ctx, common.AccessTokenHeaderName)
	if token == "" {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "missing token")
	}

	id, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return auth.Identity{}, status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		return auth.Identity{}, status.Error(codes.Unauthenticated, common.ErrInvalidToken.Error())
	}
	if err := s.users.CheckSession(ctx, id); err != nil {
		return auth.Identity{}, s.fail(ctx, "check session", err)
	}
	return id, nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	id, err := s.authenticate(ctx)
	if err != nil {
		return nil, err
	}
	return handler(withIdentity(ctx, id), req)
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	id, err := s.authenticate(ss.Context())
	if err != nil {
		return err
	}
	return handler(srv, &identityStream{ServerStream: ss, ctx: withIdentity(ss.Context(), id)})
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc finished",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration", time.Since(start),
	)
	return resp, err
}
