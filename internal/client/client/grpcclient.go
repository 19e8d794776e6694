package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// notesAPI is the subset of api.NotesClient used here.
type notesAPI interface {
	Ping(ctx context.Context, in *api.PingRequest, opts ...grpc.CallOption) (*api.PingResponse, error)
	Register(ctx context.Context, in *api.RegisterRequest, opts ...grpc.CallOption) (*api.RegisterResponse, error)
	GetSalt(ctx context.Context, in *api.GetSaltRequest, opts ...grpc.CallOption) (*api.GetSaltResponse, error)
	Login(ctx context.Context, in *api.LoginRequest, opts ...grpc.CallOption) (*api.LoginResponse, error)
	RefreshToken(ctx context.Context, in *api.RefreshTokenRequest, opts ...grpc.CallOption) (*api.RefreshTokenResponse, error)
	GetWrappedKey(ctx context.Context, in *api.GetWrappedKeyRequest, opts ...grpc.CallOption) (*api.GetWrappedKeyResponse, error)
	UpdateWrappedKey(ctx context.Context, in *api.UpdateWrappedKeyRequest, opts ...grpc.CallOption) (*api.UpdateWrappedKeyResponse, error)
	SaveNote(ctx context.Context, in *api.SaveNoteRequest, opts ...grpc.CallOption) (*api.SaveNoteResponse, error)
	DeleteNote(ctx context.Context, in *api.DeleteNoteRequest, opts ...grpc.CallOption) (*api.DeleteNoteResponse, error)
	ListNotes(ctx context.Context, in *api.ListNotesRequest, opts ...grpc.CallOption) (*api.ListNotesResponse, error)
	GetBoard(ctx context.Context, in *api.GetBoardRequest, opts ...grpc.CallOption) (*api.GetBoardResponse, error)
	SaveBoard(ctx context.Context, in *api.SaveBoardRequest, opts ...grpc.CallOption) (*api.SaveBoardResponse, error)
	Poll(ctx context.Context, in *api.PollRequest, opts ...grpc.CallOption) (*api.PollResponse, error)
	ListSessions(ctx context.Context, in *api.ListSessionsRequest, opts ...grpc.CallOption) (*api.ListSessionsResponse, error)
	RevokeSession(ctx context.Context, in *api.RevokeSessionRequest, opts ...grpc.CallOption) (*api.RevokeSessionResponse, error)
	RevokeOtherSessions(ctx context.Context, in *api.RevokeOtherSessionsRequest, opts ...grpc.CallOption) (*api.RevokeOtherSessionsResponse, error)
	Logout(ctx context.Context, in *api.LogoutRequest, opts ...grpc.CallOption) (*api.LogoutResponse, error)
	PresignBackup(ctx context.Context, in *api.PresignBackupRequest, opts ...grpc.CallOption) (*api.PresignBackupResponse, error)
	Watch(ctx context.Context, in *api.WatchRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[api.WatchEvent], error)
}

type GRPCClient struct {
	endpointURL string
	userAgent   string
	conn        *grpc.ClientConn
	client      notesAPI

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	sessionID    string

	// refreshMu serializes token refreshes.
	refreshMu sync.Mutex
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

func (s *GRPCClient) setTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

// SessionID returns the id of the session opened by the last Login.
func (s *GRPCClient) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

func (s *GRPCClient) outgoing(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)
	if s.userAgent != "" {
		md.Set(common.UserAgentHeaderName, s.userAgent)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func isTokenExpired(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	return st.Code() == codes.Unauthenticated && st.Message() == common.ErrTokenExpired.Error()
}

// refresh exchanges the refresh token for a new pair. If another caller
// already replaced staleAccess, the fresh pair is reused.
func (s *GRPCClient) refresh(ctx context.Context, staleAccess string) (string, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	access, refresh := s.tokens()
	if access != staleAccess {
		return access, nil
	}
	if refresh == "" {
		return "", ErrUnauthorized
	}

	resp, err := s.client.RefreshToken(ctx, &api.RefreshTokenRequest{RefreshToken: refresh})
	if err != nil {
		return "", err
	}
	s.setTokens(resp.AccessToken, resp.RefreshToken)
	return resp.AccessToken, nil
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	access, _ := s.tokens()

	err := invoker(s.outgoing(ctx, access), method, req, reply, cc, opts...)
	if err == nil || method == api.MethodRefreshToken || !isTokenExpired(err) {
		return err
	}

	access, rerr := s.refresh(ctx, access)
	if rerr != nil {
		return err
	}

	// tokens refreshed, retry with the new access token
	return invoker(s.outgoing(ctx, access), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	access, _ := s.tokens()
	return streamer(s.outgoing(ctx, access), desc, cc, method, opts...)
}

// NewGophNotesClient dials endpointURL lazily. userAgent labels the session
// created by Login.
func NewGophNotesClient(endpointURL, userAgent string) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, userAgent: userAgent}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
		grpc.WithStreamInterceptor(s.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewNotesClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}
	if resp.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) Register(ctx context.Context, username string, wrapped *cryptox.WrappedDEK, verifier []byte) error {
	req := &api.RegisterRequest{Username: username, WrappedDEK: wrapped, Verifier: verifier}
	if _, err := s.client.Register(ctx, req); err != nil {
		return s.mapError(err)
	}
	return nil
}

func (s *GRPCClient) GetSalt(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error) {
	resp, err := s.client.GetSalt(ctx, &api.GetSaltRequest{Username: username})
	if err != nil {
		return nil, cryptox.KDFParams{}, s.mapError(err)
	}
	return resp.KDFSalt, resp.KDFParams, nil
}

func (s *GRPCClient) Login(ctx context.Context, username string, verifier []byte) error {
	resp, err := s.client.Login(ctx, &api.LoginRequest{Username: username, Verifier: verifier})
	if err != nil {
		return s.mapError(err)
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.refreshToken = resp.RefreshToken
	s.sessionID = resp.SessionID
	s.mu.Unlock()
	return nil
}

// Logout ends the server session and forgets the tokens, even when the
// server could not be reached.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, err := s.client.Logout(ctx, &api.LogoutRequest{})

	s.mu.Lock()
	s.accessToken, s.refreshToken, s.sessionID = "", "", ""
	s.mu.Unlock()

	return s.mapError(err)
}

func (s *GRPCClient) GetWrappedKey(ctx context.Context) (*cryptox.WrappedDEK, error) {
	resp, err := s.client.GetWrappedKey(ctx, &api.GetWrappedKeyRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.WrappedDEK, nil
}

func (s *GRPCClient) UpdateWrappedKey(ctx context.Context, oldVerifier, verifier []byte, wrapped *cryptox.WrappedDEK) error {
	req := &api.UpdateWrappedKeyRequest{OldVerifier: oldVerifier, Verifier: verifier, WrappedDEK: wrapped}
	_, err := s.client.UpdateWrappedKey(ctx, req)
	return s.mapError(err)
}

func (s *GRPCClient) SaveNote(ctx context.Context, note api.Note) (string, error) {
	resp, err := s.client.SaveNote(ctx, &api.SaveNoteRequest{Note: note})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.EventID, nil
}

func (s *GRPCClient) DeleteNote(ctx context.Context, id string) (string, error) {
	resp, err := s.client.DeleteNote(ctx, &api.DeleteNoteRequest{ID: id})
	if err != nil {
		return "", s.mapError(err)
	}
	return resp.EventID, nil
}

func (s *GRPCClient) ListNotes(ctx context.Context) ([]api.Note, string, error) {
	resp, err := s.client.ListNotes(ctx, &api.ListNotesRequest{})
	if err != nil {
		return nil, "", s.mapError(err)
	}
	return resp.Notes, resp.LatestEventID, nil
}

func (s *GRPCClient) GetBoard(ctx context.Context) (board.Order, error) {
	resp, err := s.client.GetBoard(ctx, &api.GetBoardRequest{})
	if err != nil {
		return board.Order{}, s.mapError(err)
	}
	return resp.Order, nil
}

func (s *GRPCClient) SaveBoard(ctx context.Context, order board.Order) (board.Order, error) {
	resp, err := s.client.SaveBoard(ctx, &api.SaveBoardRequest{Order: order})
	if err != nil {
		return board.Order{}, s.mapError(err)
	}
	return resp.Order, nil
}

func (s *GRPCClient) Poll(ctx context.Context, lastSeenID string) (ticker.Payload, error) {
	resp, err := s.client.Poll(ctx, &api.PollRequest{LastSeenID: lastSeenID})
	if err != nil {
		return ticker.Payload{}, s.mapError(err)
	}
	return resp.Payload, nil
}

func (s *GRPCClient) ListSessions(ctx context.Context) ([]api.Session, error) {
	resp, err := s.client.ListSessions(ctx, &api.ListSessionsRequest{})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp.Sessions, nil
}

func (s *GRPCClient) RevokeSession(ctx context.Context, sessionID string) error {
	_, err := s.client.RevokeSession(ctx, &api.RevokeSessionRequest{SessionID: sessionID})
	return s.mapError(err)
}

func (s *GRPCClient) RevokeOtherSessions(ctx context.Context) error {
	_, err := s.client.RevokeOtherSessions(ctx, &api.RevokeOtherSessionsRequest{})
	return s.mapError(err)
}

func (s *GRPCClient) PresignBackup(ctx context.Context, key string) (*api.PresignBackupResponse, error) {
	resp, err := s.client.PresignBackup(ctx, &api.PresignBackupRequest{Key: key})
	if err != nil {
		return nil, s.mapError(err)
	}
	return resp, nil
}

// Watch streams events to fn until ctx is done, the server ends the stream
// or fn fails. An expired access token at stream start is refreshed once.
// The stream cursor is kept up to date so a reopened stream resumes from the
// last delivered change.
func (s *GRPCClient) Watch(ctx context.Context, lastSeenID string, fn func(api.WatchEvent) error) error {
	refreshed := false
	for {
		access, _ := s.tokens()

		received, err := s.watchOnce(ctx, &lastSeenID, fn)
		switch {
		case err == nil:
			return nil
		case ctx.Err() != nil:
			return nil
		case !received && !refreshed && isTokenExpired(err):
			if _, rerr := s.refresh(ctx, access); rerr != nil {
				return s.mapError(err)
			}
			refreshed = true
			continue
		default:
			return s.mapError(err)
		}
	}
}

// watchOnce runs one stream. received reports whether any event arrived.
func (s *GRPCClient) watchOnce(ctx context.Context, lastSeenID *string, fn func(api.WatchEvent) error) (bool, error) {
	stream, err := s.client.Watch(ctx, &api.WatchRequest{LastSeenID: *lastSeenID})
	if err != nil {
		return false, err
	}

	received := false
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return received, nil
		}
		if err != nil {
			return received, err
		}
		received = true

		if ev.Ticker != nil && ev.Ticker.Changed() {
			*lastSeenID = ev.Ticker.ID
		}
		if err := fn(*ev); err != nil {
			return received, &callbackError{err: err}
		}
	}
}

// callbackError marks errors returned by the Watch callback so they are
// passed through unmapped.
type callbackError struct{ err error }

func (e *callbackError) Error() string { return e.err.Error() }
func (e *callbackError) Unwrap() error { return e.err }

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	var cbErr *callbackError
	if errors.As(err, &cbErr) {
		return cbErr.err
	}
	if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrUnavailable) {
		return err
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		if st.Message() == common.ErrSessionRevoked.Error() {
			return ErrSessionRevoked
		}
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return fmt.Errorf("%w: %s", common.ErrorNotFound, st.Message())
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %s", common.ErrorAlreadyExists, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrorValidation, st.Message())
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
