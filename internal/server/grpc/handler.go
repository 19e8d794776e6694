package grpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// timeNow is a seam for Poll tests.
var timeNow = time.Now

func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	if isInternal(err) {
		s.logger.Error(ctx, op+" failed", "error", err)
	}
	return toStatus(err)
}

func (s *GRPCServer) identity(ctx context.Context) (auth.Identity, error) {
	id, ok := identityFromContext(ctx)
	if !ok {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return id, nil
}

func wrappedKeyFromAPI(w *cryptox.WrappedDEK, verifier []byte) (*models.WrappedKey, error) {
	if w == nil {
		return nil, status.Error(codes.InvalidArgument, "wrapped key is required")
	}
	params, err := json.Marshal(w.KDFParams)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed kdf params")
	}
	return &models.WrappedKey{
		KDFSalt:       w.KDFSalt,
		WrappedKey:    w.WrappedKey,
		WrapNonce:     w.WrapNonce,
		WrapAlgorithm: w.WrapAlgorithm,
		KDFParams:     params,
		Verifier:      verifier,
	}, nil
}

func wrappedKeyToAPI(k *models.WrappedKey) (*cryptox.WrappedDEK, error) {
	var params cryptox.KDFParams
	if err := json.Unmarshal(k.KDFParams, &params); err != nil {
		return nil, err
	}
	return &cryptox.WrappedDEK{
		KDFSalt:       k.KDFSalt,
		WrappedKey:    k.WrappedKey,
		WrapNonce:     k.WrapNonce,
		WrapAlgorithm: k.WrapAlgorithm,
		KDFParams:     params,
	}, nil
}

func noteToAPI(n *models.Note) api.Note {
	return api.Note{
		ID:         n.ID,
		Ciphertext: n.Ciphertext,
		Nonce:      n.Nonce,
		CreatedAt:  n.CreatedAt,
		UpdatedAt:  n.UpdatedAt,
	}
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {
	s.logger.Info(ctx, "Registration request", "username", req.Username)

	key, err := wrappedKeyFromAPI(req.WrappedDEK, req.Verifier)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Register(ctx, req.Username, key)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	s.logger.Info(ctx, "Registered", "username", req.Username, "user_id", user.ID)
	return &api.RegisterResponse{UserID: user.ID}, nil
}

func (s *GRPCServer) GetSalt(ctx context.Context, req *api.GetSaltRequest) (*api.GetSaltResponse, error) {
	info, err := s.users.GetSalt(ctx, req.Username)
	if err != nil {
		return nil, s.fail(ctx, "get salt", err)
	}
	var params cryptox.KDFParams
	if err := json.Unmarshal(info.KDFParams, &params); err != nil {
		return nil, s.fail(ctx, "get salt", err)
	}
	return &api.GetSaltResponse{KDFSalt: info.KDFSalt, KDFParams: params}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	tokens, err := s.users.Login(ctx, req.Username, req.Verifier, metadataValue(ctx, common.UserAgentHeaderName))
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}
	return &api.LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		SessionID:    tokens.SessionID,
	}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.RefreshTokenResponse, error) {
	tokens, err := s.users.RefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh token", err)
	}
	return &api.RefreshTokenResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) GetWrappedKey(ctx context.Context, req *api.GetWrappedKeyRequest) (*api.GetWrappedKeyResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	key, err := s.users.GetWrappedKey(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "get wrapped key", err)
	}
	w, err := wrappedKeyToAPI(key)
	if err != nil {
		return nil, s.fail(ctx, "get wrapped key", err)
	}
	return &api.GetWrappedKeyResponse{WrappedDEK: w}, nil
}

func (s *GRPCServer) UpdateWrappedKey(ctx context.Context, req *api.UpdateWrappedKeyRequest) (*api.UpdateWrappedKeyResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	key, err := wrappedKeyFromAPI(req.WrappedDEK, req.Verifier)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdateWrappedKey(ctx, id, req.OldVerifier, key); err != nil {
		return nil, s.fail(ctx, "update wrapped key", err)
	}
	s.logger.Info(ctx, "Wrapped key rotated", "user_id", id.UserID)
	return &api.UpdateWrappedKeyResponse{}, nil
}

func (s *GRPCServer) SaveNote(ctx context.Context, req *api.SaveNoteRequest) (*api.SaveNoteResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	n := &models.Note{ID: req.Note.ID, Ciphertext: req.Note.Ciphertext, Nonce: req.Note.Nonce, CreatedAt: req.Note.CreatedAt}
	eventID, err := s.notes.Save(ctx, id.UserID, n)
	if err != nil {
		return nil, s.fail(ctx, "save note", err)
	}
	return &api.SaveNoteResponse{EventID: eventID, Note: noteToAPI(n)}, nil
}

func (s *GRPCServer) DeleteNote(ctx context.Context, req *api.DeleteNoteRequest) (*api.DeleteNoteResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	eventID, err := s.notes.Delete(ctx, id.UserID, req.ID)
	if err != nil {
		return nil, s.fail(ctx, "delete note", err)
	}
	return &api.DeleteNoteResponse{EventID: eventID}, nil
}

func (s *GRPCServer) ListNotes(ctx context.Context, req *api.ListNotesRequest) (*api.ListNotesResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	// read the cursor first so a concurrent change is reported again later
	latest, err := s.notes.LatestEventID(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "list notes", err)
	}
	list, err := s.notes.List(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "list notes", err)
	}

	out := make([]api.Note, 0, len(list))
	for i := range list {
		out = append(out, noteToAPI(&list[i]))
	}
	return &api.ListNotesResponse{Notes: out, LatestEventID: latest}, nil
}

func (s *GRPCServer) GetBoard(ctx context.Context, req *api.GetBoardRequest) (*api.GetBoardResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.boards.Get(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "get board", err)
	}
	return &api.GetBoardResponse{Order: order}, nil
}

func (s *GRPCServer) SaveBoard(ctx context.Context, req *api.SaveBoardRequest) (*api.SaveBoardResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	order, eventID, err := s.boards.Save(ctx, id.UserID, req.Order)
	if err != nil {
		return nil, s.fail(ctx, "save board", err)
	}
	return &api.SaveBoardResponse{Order: order, EventID: eventID}, nil
}

func (s *GRPCServer) Poll(ctx context.Context, req *api.PollRequest) (*api.PollResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	latest, err := s.notes.LatestEventID(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "poll", err)
	}
	_, p := ticker.Tick(req.LastSeenID, latest, timeNow())
	return &api.PollResponse{Payload: p}, nil
}

func (s *GRPCServer) ListSessions(ctx context.Context, req *api.ListSessionsRequest) (*api.ListSessionsResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.users.ListSessions(ctx, id.UserID)
	if err != nil {
		return nil, s.fail(ctx, "list sessions", err)
	}

	out := make([]api.Session, 0, len(list))
	for _, sess := range list {
		out = append(out, api.Session{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   sess.ID == id.SessionID,
		})
	}
	return &api.ListSessionsResponse{Sessions: out}, nil
}

func (s *GRPCServer) RevokeSession(ctx context.Context, req *api.RevokeSessionRequest) (*api.RevokeSessionResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	if req.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session id is required")
	}
	if err := s.users.RevokeSession(ctx, id, req.SessionID); err != nil {
		return nil, s.fail(ctx, "revoke session", err)
	}
	return &api.RevokeSessionResponse{}, nil
}

func (s *GRPCServer) RevokeOtherSessions(ctx context.Context, req *api.RevokeOtherSessionsRequest) (*api.RevokeOtherSessionsResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.RevokeOtherSessions(ctx, id); err != nil {
		return nil, s.fail(ctx, "revoke other sessions", err)
	}
	return &api.RevokeOtherSessionsResponse{}, nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.users.Logout(ctx, id); err != nil {
		return nil, s.fail(ctx, "logout", err)
	}
	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) PresignBackup(ctx context.Context, req *api.PresignBackupRequest) (*api.PresignBackupResponse, error) {
	id, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}

	if req.Key == "" {
		key, url, err := s.backups.PresignUpload(ctx, id.UserID)
		if err != nil {
			return nil, s.fail(ctx, "presign backup upload", err)
		}
		return &api.PresignBackupResponse{Key: key, URL: url, Method: "PUT"}, nil
	}

	url, err := s.backups.PresignDownload(ctx, id.UserID, req.Key)
	if err != nil {
		return nil, s.fail(ctx, "presign backup download", err)
	}
	return &api.PresignBackupResponse{Key: req.Key, URL: url, Method: "GET"}, nil
}
