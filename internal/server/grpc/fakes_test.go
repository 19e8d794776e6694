package grpc

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/notifier"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/services"
)

type nopLogger struct{}

func (n nopLogger) Debug(context.Context, string, ...any) {}
func (n nopLogger) Info(context.Context, string, ...any)  {}
func (n nopLogger) Warn(context.Context, string, ...any)  {}
func (n nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger            { return n }

type fakeUsers struct {
	regResp *models.User
	regErr  error
	regKey  *models.WrappedKey

	salt    *services.SaltInfo
	saltErr error

	loginResp  *services.TokenPair
	loginErr   error
	loginAgent string

	refreshResp *services.TokenPair
	refreshErr  error

	key    *models.WrappedKey
	keyErr error

	updateErr error

	sessions []models.Session

	revoked   []string
	revokeErr error
	others    int
	loggedOut []auth.Identity

	sessMu   sync.Mutex
	ended    map[string]bool
	checkErr error
}

func (f *fakeUsers) Register(_ context.Context, _ string, key *models.WrappedKey) (*models.User, error) {
	f.regKey = key
	return f.regResp, f.regErr
}

func (f *fakeUsers) GetSalt(context.Context, string) (*services.SaltInfo, error) {
	return f.salt, f.saltErr
}

func (f *fakeUsers) Login(_ context.Context, _ string, _ []byte, agent string) (*services.TokenPair, error) {
	f.loginAgent = agent
	return f.loginResp, f.loginErr
}

func (f *fakeUsers) RefreshToken(context.Context, string) (*services.TokenPair, error) {
	return f.refreshResp, f.refreshErr
}

func (f *fakeUsers) GetWrappedKey(context.Context, string) (*models.WrappedKey, error) {
	return f.key, f.keyErr
}

func (f *fakeUsers) UpdateWrappedKey(_ context.Context, _ auth.Identity, _ []byte, key *models.WrappedKey) error {
	f.key = key
	return f.updateErr
}

func (f *fakeUsers) ListSessions(context.Context, string) ([]models.Session, error) {
	return f.sessions, nil
}

func (f *fakeUsers) RevokeSession(_ context.Context, _ auth.Identity, sessionID string) error {
	if f.revokeErr != nil {
		return f.revokeErr
	}
	f.revoked = append(f.revoked, sessionID)
	return nil
}

func (f *fakeUsers) RevokeOtherSessions(context.Context, auth.Identity) error {
	f.others++
	return nil
}

func (f *fakeUsers) Logout(_ context.Context, id auth.Identity) error {
	f.loggedOut = append(f.loggedOut, id)
	return nil
}

func (f *fakeUsers) CheckSession(_ context.Context, id auth.Identity) error {
	f.sessMu.Lock()
	defer f.sessMu.Unlock()
	if f.checkErr != nil {
		return f.checkErr
	}
	if f.ended[id.SessionID] {
		return common.ErrSessionRevoked
	}
	return nil
}

func (f *fakeUsers) endSession(id string) {
	f.sessMu.Lock()
	defer f.sessMu.Unlock()
	if f.ended == nil {
		f.ended = map[string]bool{}
	}
	f.ended[id] = true
}

type fakeNotes struct {
	mu      sync.Mutex
	latest  string
	saveErr error
	delErr  error
	list    []models.Note
	saved   []*models.Note
}

func (f *fakeNotes) Save(_ context.Context, userID string, n *models.Note) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	n.UserID = userID
	f.saved = append(f.saved, n)
	return "e-save", nil
}

func (f *fakeNotes) Delete(context.Context, string, string) (string, error) {
	if f.delErr != nil {
		return "", f.delErr
	}
	return "e-del", nil
}

func (f *fakeNotes) List(context.Context, string) ([]models.Note, error) { return f.list, nil }

func (f *fakeNotes) LatestEventID(context.Context, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, nil
}

func (f *fakeNotes) setLatest(id string) {
	f.mu.Lock()
	f.latest = id
	f.mu.Unlock()
}

type fakeBoards struct {
	order board.Order
}

func (f *fakeBoards) Get(context.Context, string) (board.Order, error) { return f.order, nil }

func (f *fakeBoards) Save(_ context.Context, _ string, o board.Order) (board.Order, string, error) {
	f.order = o
	return o, "e-board", nil
}

type fakeBackups struct {
	getErr error
}

func (f *fakeBackups) PresignUpload(context.Context, string) (string, string, error) {
	return "backups/u1/k", "https://put", nil
}

func (f *fakeBackups) PresignDownload(_ context.Context, _, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return "https://get/" + key, nil
}

// fakeEvents hands out one channel per Subscribe call.
type fakeEvents struct {
	mu     sync.Mutex
	ch     chan notifier.Event
	closed bool
	err    error
}

func (f *fakeEvents) Subscribe(context.Context, string) (<-chan notifier.Event, func() error, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ch = make(chan notifier.Event, 1)
	return f.ch, func() error {
		f.mu.Lock()
		f.closed = true
		f.mu.Unlock()
		return nil
	}, nil
}

func (f *fakeEvents) publish(ev notifier.Event) {
	f.mu.Lock()
	ch := f.ch
	f.mu.Unlock()
	ch <- ev
}

func (f *fakeEvents) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func defaultParams() json.RawMessage {
	b, _ := json.Marshal(map[string]any{"algorithm": "argon2id", "key_len": 32, "time": 1, "memory_kib": 8, "threads": 1})
	return b
}
