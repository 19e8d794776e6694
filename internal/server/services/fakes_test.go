package services

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/boards"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/wrappedkeys"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type fakeUsersRepo struct {
	created   *models.User
	createErr error

	byName    map[string]*models.User
	byNameErr error
	byIDErr   error
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	u.ID = "u-" + u.Username
	f.created = u
	return u, nil
}

func (f *fakeUsersRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	if f.byNameErr != nil {
		return nil, f.byNameErr
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	for _, u := range f.byName {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

type fakeKeysRepo struct {
	keys      map[string]*models.WrappedKey
	upsertErr error
	getErr    error
}

func (f *fakeKeysRepo) Upsert(_ context.Context, k *models.WrappedKey) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if f.keys == nil {
		f.keys = map[string]*models.WrappedKey{}
	}
	f.keys[k.UserID] = k
	return nil
}

func (f *fakeKeysRepo) Get(_ context.Context, userID string) (*models.WrappedKey, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	k, ok := f.keys[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return k, nil
}

type fakeSessionsRepo struct {
	byToken   map[string]*models.Session
	created   []*models.Session
	createErr error
	findErr   error
	rotateErr error
	list      []models.Session
	active    map[string]bool
	activeErr error

	LastRotatedID    string
	LastRotatedToken string
}

func (f *fakeSessionsRepo) Create(_ context.Context, s *models.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSessionsRepo) FindByToken(_ context.Context, token string) (*models.Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.byToken[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return s, nil
}

func (f *fakeSessionsRepo) Rotate(_ context.Context, id, token string, _ time.Time) error {
	f.LastRotatedID, f.LastRotatedToken = id, token
	return f.rotateErr
}

func (f *fakeSessionsRepo) ListByUser(context.Context, string) ([]models.Session, error) {
	return f.list, nil
}

func (f *fakeSessionsRepo) Active(_ context.Context, _, id string, _ time.Time) (bool, error) {
	if f.activeErr != nil {
		return false, f.activeErr
	}
	return f.active[id], nil
}

func (f *fakeSessionsRepo) DeleteSession(context.Context, string, string) error       { return nil }
func (f *fakeSessionsRepo) DeleteOtherSessions(context.Context, string, string) error { return nil }
func (f *fakeSessionsRepo) DeleteAllSessions(context.Context, string) error           { return nil }

type fakeNotesRepo struct {
	ids       []string
	idsErr    error
	upsertErr error
	deleteErr error
	list      []models.Note

	LastUpserted *models.Note
	LastDeleted  string
}

func (f *fakeNotesRepo) Upsert(_ context.Context, n *models.Note) error {
	f.LastUpserted = n
	return f.upsertErr
}

func (f *fakeNotesRepo) Delete(_ context.Context, _, noteID string) error {
	f.LastDeleted = noteID
	return f.deleteErr
}

func (f *fakeNotesRepo) List(context.Context, string) ([]models.Note, error) { return f.list, nil }

func (f *fakeNotesRepo) IDs(context.Context, string) ([]string, error) {
	if f.idsErr != nil {
		return nil, f.idsErr
	}
	return f.ids, nil
}

type fakeEventsRepo struct {
	appended  []*models.NoteEvent
	appendErr error
	latest    string
}

func (f *fakeEventsRepo) Append(_ context.Context, e *models.NoteEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	e.Seq = int64(len(f.appended) + 1)
	f.appended = append(f.appended, e)
	return nil
}

func (f *fakeEventsRepo) Latest(context.Context, string) (string, error) { return f.latest, nil }

type fakeBoardsRepo struct {
	saved   *models.Board
	getErr  error
	saveErr error
}

func (f *fakeBoardsRepo) Get(context.Context, string) (*models.Board, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.saved == nil {
		return nil, common.ErrorNotFound
	}
	return f.saved, nil
}

func (f *fakeBoardsRepo) Save(_ context.Context, b *models.Board) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = b
	return nil
}

type fakeRepoManager struct {
	users    *fakeUsersRepo
	keys     *fakeKeysRepo
	sessions *fakeSessionsRepo
	notes    *fakeNotesRepo
	events   *fakeEventsRepo
	boards   *fakeBoardsRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:    &fakeUsersRepo{byName: map[string]*models.User{}},
		keys:     &fakeKeysRepo{},
		sessions: &fakeSessionsRepo{},
		notes:    &fakeNotesRepo{},
		events:   &fakeEventsRepo{},
		boards:   &fakeBoardsRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) WrappedKeys(dbx.DBTX) wrappedkeys.Repository  { return m.keys }
func (m *fakeRepoManager) Sessions(dbx.DBTX) sessions.Repository        { return m.sessions }
func (m *fakeRepoManager) Notes(dbx.DBTX) notes.Repository              { return m.notes }
func (m *fakeRepoManager) Events(dbx.DBTX) events.Repository            { return m.events }
func (m *fakeRepoManager) Boards(dbx.DBTX) boards.Repository            { return m.boards }

type fakeRevoker struct {
	notified []string
	revoked  []string
	others   []string
	err      error
}

func (f *fakeRevoker) NotifySessionsChanged(_ context.Context, username string) {
	f.notified = append(f.notified, username)
}

func (f *fakeRevoker) RevokeSessionAndNotify(_ context.Context, username, sessionID string) error {
	if f.err != nil {
		return f.err
	}
	f.revoked = append(f.revoked, username+"/"+sessionID)
	return nil
}

func (f *fakeRevoker) RevokeOtherSessionsAndNotify(_ context.Context, username, keep string) error {
	if f.err != nil {
		return f.err
	}
	f.others = append(f.others, username+"/"+keep)
	return nil
}
