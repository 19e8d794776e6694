package services

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
	"github.com/stretchr/testify/require"
)

var cheapParams = cryptox.KDFParams{
	Algorithm: cryptox.KDFArgon2id,
	KeyLen:    cryptox.KeyLen,
	Time:      1,
	MemoryKiB: cryptox.MinArgon2MemoryKiB,
	Threads:   1,
}

// useCheapKDF makes Register derive with cheap parameters.
func useCheapKDF(t *testing.T) {
	t.Helper()
	prev := createWrappedDEK
	createWrappedDEK = func(p []byte) (*cryptox.KEK, *cryptox.WrappedDEK, []byte, error) {
		return cryptox.CreateWrappedDEKWith(p, cheapParams, cryptox.WrapAESGCM)
	}
	t.Cleanup(func() { createWrappedDEK = prev })
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fakeClient is an in-memory server for one account.
type fakeClient struct {
	mu sync.Mutex

	online   bool
	username string
	wrapped  *cryptox.WrappedDEK
	verifier []byte
	loggedIn bool

	notes   map[string]api.Note
	order   board.Order
	eventID int

	sessions []api.Session
	revoked  []string

	presigned map[string]string
	watch     []api.WatchEvent
	watchFrom string

	saveErr   error
	deleteErr error
	logoutErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		online:    true,
		notes:     map[string]api.Note{},
		order:     board.Order{Pinned: []string{}, Other: []string{}},
		presigned: map[string]string{},
	}
}

func (f *fakeClient) nextEvent() string {
	f.eventID++
	return fmt.Sprintf("evt-%03d", f.eventID)
}

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) Ping(ctx context.Context) error {
	if !f.online {
		return client.ErrUnavailable
	}
	return nil
}

func (f *fakeClient) Register(ctx context.Context, username string, wrapped *cryptox.WrappedDEK, verifier []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.username != "" {
		return common.ErrorAlreadyExists
	}
	f.username, f.wrapped, f.verifier = username, wrapped, verifier
	return nil
}

func (f *fakeClient) GetSalt(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return nil, cryptox.KDFParams{}, client.ErrUnavailable
	}
	if username != f.username {
		return bytes.Repeat([]byte{7}, cryptox.SaltLen), cheapParams, nil
	}
	return f.wrapped.KDFSalt, f.wrapped.KDFParams, nil
}

func (f *fakeClient) Login(ctx context.Context, username string, verifier []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if username != f.username || !bytes.Equal(verifier, f.verifier) {
		return client.ErrUnauthorized
	}
	f.loggedIn = true
	return nil
}

func (f *fakeClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedIn = false
	return f.logoutErr
}

func (f *fakeClient) GetWrappedKey(ctx context.Context) (*cryptox.WrappedDEK, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedIn {
		return nil, client.ErrUnauthorized
	}
	w := *f.wrapped
	return &w, nil
}

func (f *fakeClient) UpdateWrappedKey(ctx context.Context, oldVerifier, verifier []byte, wrapped *cryptox.WrappedDEK) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !bytes.Equal(oldVerifier, f.verifier) {
		return client.ErrUnauthorized
	}
	f.verifier, f.wrapped = verifier, wrapped
	return nil
}

func (f *fakeClient) SaveNote(ctx context.Context, note api.Note) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return "", f.saveErr
	}
	// the server keeps created_at of an existing row and of a re-inserted note
	if old, ok := f.notes[note.ID]; ok {
		note.CreatedAt = old.CreatedAt
	} else if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	f.notes[note.ID] = note
	return f.nextEvent(), nil
}

func (f *fakeClient) DeleteNote(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return "", f.deleteErr
	}
	if _, ok := f.notes[id]; !ok {
		return "", common.ErrorNotFound
	}
	delete(f.notes, id)
	return f.nextEvent(), nil
}

func (f *fakeClient) ListNotes(ctx context.Context) ([]api.Note, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.online {
		return nil, "", client.ErrUnavailable
	}
	out := make([]api.Note, 0, len(f.notes))
	for _, n := range f.notes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	latest := ""
	if f.eventID > 0 {
		latest = fmt.Sprintf("evt-%03d", f.eventID)
	}
	return out, latest, nil
}

func (f *fakeClient) GetBoard(ctx context.Context) (board.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.order, nil
}

func (f *fakeClient) SaveBoard(ctx context.Context, order board.Order) (board.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = order
	f.nextEvent()
	return order, nil
}

func (f *fakeClient) Poll(ctx context.Context, lastSeenID string) (ticker.Payload, error) {
	return ticker.Payload{Event: ticker.EventPing}, nil
}

func (f *fakeClient) ListSessions(ctx context.Context) ([]api.Session, error) {
	return f.sessions, nil
}

func (f *fakeClient) RevokeSession(ctx context.Context, sessionID string) error {
	f.revoked = append(f.revoked, sessionID)
	return nil
}

func (f *fakeClient) RevokeOtherSessions(ctx context.Context) error {
	f.revoked = append(f.revoked, "*")
	return nil
}

func (f *fakeClient) PresignBackup(ctx context.Context, key string) (*api.PresignBackupResponse, error) {
	if key == "" {
		key = "backups/test.json"
		return &api.PresignBackupResponse{Key: key, URL: "https://s3.test/put/" + key, Method: "PUT"}, nil
	}
	return &api.PresignBackupResponse{Key: key, URL: "https://s3.test/get/" + key, Method: "GET"}, nil
}

func (f *fakeClient) Watch(ctx context.Context, lastSeenID string, fn func(api.WatchEvent) error) error {
	f.watchFrom = lastSeenID
	for _, ev := range f.watch {
		if err := fn(ev); err != nil {
			return err
		}
	}
	return nil
}
