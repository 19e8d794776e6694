package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type testDeps struct {
	users   *fakeUsers
	notes   *fakeNotes
	boards  *fakeBoards
	backups *fakeBackups
	events  *fakeEvents
}

func newServer(d *testDeps) *GRPCServer {
	if d.users == nil {
		d.users = &fakeUsers{}
	}
	if d.notes == nil {
		d.notes = &fakeNotes{}
	}
	if d.boards == nil {
		d.boards = &fakeBoards{}
	}
	if d.backups == nil {
		d.backups = &fakeBackups{}
	}
	if d.events == nil {
		d.events = &fakeEvents{}
	}
	return NewGRPCServer(nopLogger{}, Options{
		SecretKey:     testSecret,
		WatchInterval: 20 * time.Millisecond,
		Users:         d.users,
		Notes:         d.notes,
		Boards:        d.boards,
		Backups:       d.backups,
		Events:        d.events,
	})
}

func authed() context.Context {
	return withIdentity(context.Background(), aliceID)
}

func TestPing_OK(t *testing.T) {
	s := newServer(&testDeps{})
	resp, err := s.Ping(context.Background(), &api.PingRequest{})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Status)
}

func TestRegister(t *testing.T) {
	d := &testDeps{users: &fakeUsers{regResp: &models.User{ID: "u1"}}}
	s := newServer(d)

	w := &cryptox.WrappedDEK{KDFSalt: []byte("salt"), WrappedKey: []byte("wk"), WrapNonce: []byte("n"),
		WrapAlgorithm: cryptox.WrapAESGCM, KDFParams: cryptox.DefaultKDFParams()}
	resp, err := s.Register(context.Background(), &api.RegisterRequest{Username: "alice", WrappedDEK: w, Verifier: []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, "u1", resp.UserID)

	var params cryptox.KDFParams
	require.NoError(t, json.Unmarshal(d.users.regKey.KDFParams, &params))
	assert.Equal(t, cryptox.DefaultKDFParams(), params)
	assert.Equal(t, []byte("v"), d.users.regKey.Verifier)

	_, err = s.Register(context.Background(), &api.RegisterRequest{Username: "alice"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	d.users.regErr = common.ErrorAlreadyExists
	_, err = s.Register(context.Background(), &api.RegisterRequest{Username: "alice", WrappedDEK: w, Verifier: []byte("v")})
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestGetSalt(t *testing.T) {
	d := &testDeps{users: &fakeUsers{salt: &services.SaltInfo{KDFSalt: []byte("s"), KDFParams: defaultParams()}}}
	s := newServer(d)

	resp, err := s.GetSalt(context.Background(), &api.GetSaltRequest{Username: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []byte("s"), resp.KDFSalt)
	assert.Equal(t, uint32(8), resp.KDFParams.MemoryKiB)

	d.users.saltErr = errors.New("db down")
	_, err = s.GetSalt(context.Background(), &api.GetSaltRequest{Username: "alice"})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Equal(t, "internal error", st.Message())
}

func TestLogin(t *testing.T) {
	d := &testDeps{users: &fakeUsers{loginResp: &services.TokenPair{AccessToken: "a", RefreshToken: "r", SessionID: "s1"}}}
	s := newServer(d)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.UserAgentHeaderName, "laptop"))
	resp, err := s.Login(ctx, &api.LoginRequest{Username: "alice", Verifier: []byte("v")})
	require.NoError(t, err)
	assert.Equal(t, &api.LoginResponse{AccessToken: "a", RefreshToken: "r", SessionID: "s1"}, resp)
	assert.Equal(t, "laptop", d.users.loginAgent)

	d.users.loginErr = common.ErrorUnauthorized
	_, err = s.Login(ctx, &api.LoginRequest{Username: "alice"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestRefreshToken(t *testing.T) {
	d := &testDeps{users: &fakeUsers{refreshResp: &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}}}
	s := newServer(d)

	resp, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{RefreshToken: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "r2", resp.RefreshToken)

	d.users.refreshErr = common.ErrRefreshTokenExpired
	_, err = s.RefreshToken(context.Background(), &api.RefreshTokenRequest{RefreshToken: "r1"})
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Unauthenticated, st.Code())
	assert.Equal(t, common.ErrRefreshTokenExpired.Error(), st.Message())
}

func TestWrappedKeyRoundTrip(t *testing.T) {
	d := &testDeps{}
	s := newServer(d)

	w := &cryptox.WrappedDEK{KDFSalt: []byte("salt"), WrappedKey: []byte("wk"), WrapNonce: []byte("n"),
		WrapAlgorithm: cryptox.WrapXChaCha20Poly1305, KDFParams: cryptox.DefaultScryptParams()}
	_, err := s.UpdateWrappedKey(authed(), &api.UpdateWrappedKeyRequest{OldVerifier: []byte("old"), Verifier: []byte("new"), WrappedDEK: w})
	require.NoError(t, err)

	resp, err := s.GetWrappedKey(authed(), &api.GetWrappedKeyRequest{})
	require.NoError(t, err)
	assert.Equal(t, w, resp.WrappedDEK)

	_, err = s.GetWrappedKey(context.Background(), &api.GetWrappedKeyRequest{})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	d.users.updateErr = common.ErrorUnauthorized
	_, err = s.UpdateWrappedKey(authed(), &api.UpdateWrappedKeyRequest{WrappedDEK: w})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestNotesHandlers(t *testing.T) {
	now := time.Now()
	d := &testDeps{notes: &fakeNotes{
		latest: "e7",
		list:   []models.Note{{ID: "n1", Ciphertext: []byte("c"), Nonce: []byte("x"), CreatedAt: now}},
	}}
	s := newServer(d)

	created := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	saved, err := s.SaveNote(authed(), &api.SaveNoteRequest{Note: api.Note{ID: "n1", Ciphertext: []byte("c"), Nonce: []byte("x"), CreatedAt: created}})
	require.NoError(t, err)
	assert.Equal(t, "e-save", saved.EventID)
	assert.Equal(t, "u1", d.notes.saved[0].UserID)
	assert.Equal(t, created, d.notes.saved[0].CreatedAt)
	assert.Equal(t, created, saved.Note.CreatedAt)

	list, err := s.ListNotes(authed(), &api.ListNotesRequest{})
	require.NoError(t, err)
	assert.Equal(t, "e7", list.LatestEventID)
	require.Len(t, list.Notes, 1)
	assert.Equal(t, []byte("c"), list.Notes[0].Ciphertext)

	del, err := s.DeleteNote(authed(), &api.DeleteNoteRequest{ID: "n1"})
	require.NoError(t, err)
	assert.Equal(t, "e-del", del.EventID)

	d.notes.delErr = common.ErrorNotFound
	_, err = s.DeleteNote(authed(), &api.DeleteNoteRequest{ID: "n1"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	d.notes.saveErr = common.ErrorValidation
	_, err = s.SaveNote(authed(), &api.SaveNoteRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestBoardHandlers(t *testing.T) {
	d := &testDeps{}
	s := newServer(d)

	order := board.Order{Pinned: []string{"a"}, Other: []string{"b"}}
	saved, err := s.SaveBoard(authed(), &api.SaveBoardRequest{Order: order})
	require.NoError(t, err)
	assert.Equal(t, "e-board", saved.EventID)

	got, err := s.GetBoard(authed(), &api.GetBoardRequest{})
	require.NoError(t, err)
	assert.Equal(t, order, got.Order)
}

func TestPoll(t *testing.T) {
	orig := timeNow
	t.Cleanup(func() { timeNow = orig })
	timeNow = func() time.Time { return time.UnixMilli(1234) }

	d := &testDeps{notes: &fakeNotes{latest: "e1"}}
	s := newServer(d)

	resp, err := s.Poll(authed(), &api.PollRequest{LastSeenID: ""})
	require.NoError(t, err)
	assert.Equal(t, ticker.Payload{Event: ticker.EventNotesChanged, ID: "e1"}, resp.Payload)

	resp, err = s.Poll(authed(), &api.PollRequest{LastSeenID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, ticker.Payload{Event: ticker.EventPing, TS: 1234}, resp.Payload)
}

func TestSessionHandlers(t *testing.T) {
	d := &testDeps{users: &fakeUsers{sessions: []models.Session{{ID: "s1", UserAgent: "cli"}, {ID: "s2"}}}}
	s := newServer(d)

	list, err := s.ListSessions(authed(), &api.ListSessionsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.True(t, list.Sessions[0].Current)
	assert.False(t, list.Sessions[1].Current)

	_, err = s.RevokeSession(authed(), &api.RevokeSessionRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.RevokeSession(authed(), &api.RevokeSessionRequest{SessionID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, d.users.revoked)

	d.users.revokeErr = common.ErrorNotFound
	_, err = s.RevokeSession(authed(), &api.RevokeSessionRequest{SessionID: "s9"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.RevokeOtherSessions(authed(), &api.RevokeOtherSessionsRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, d.users.others)

	_, err = s.Logout(authed(), &api.LogoutRequest{})
	require.NoError(t, err)
	assert.Equal(t, aliceID, d.users.loggedOut[0])
}

func TestPresignBackup(t *testing.T) {
	d := &testDeps{}
	s := newServer(d)

	up, err := s.PresignBackup(authed(), &api.PresignBackupRequest{})
	require.NoError(t, err)
	assert.Equal(t, "PUT", up.Method)
	assert.Equal(t, "backups/u1/k", up.Key)

	down, err := s.PresignBackup(authed(), &api.PresignBackupRequest{Key: up.Key})
	require.NoError(t, err)
	assert.Equal(t, "GET", down.Method)
	assert.Equal(t, "https://get/backups/u1/k", down.URL)

	d.backups.getErr = common.ErrorNotFound
	_, err = s.PresignBackup(authed(), &api.PresignBackupRequest{Key: "backups/u2/x"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestToStatus(t *testing.T) {
	assert.Equal(t, codes.Canceled, status.Code(toStatus(context.Canceled)))
	assert.Equal(t, codes.Internal, status.Code(toStatus(errors.New("x"))))
	assert.True(t, isInternal(errors.New("x")))
	assert.False(t, isInternal(common.ErrorNotFound))
}
