package cli

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/config"
	"github.com/dmitrijs2005/gophnotes/internal/client/services"
	"github.com/dmitrijs2005/gophnotes/internal/history"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
)

type fakeVault struct {
	services.VaultService

	username string
	pass     []byte

	regUser string
	regPass []byte
	regErr  error

	onlineErr  error
	offlineErr error
	changeErr  error
	logoutErr  error

	calls []string
}

func (f *fakeVault) Register(_ context.Context, user string, pass []byte) error {
	f.calls = append(f.calls, "register")
	f.regUser, f.regPass = user, append([]byte(nil), pass...)
	return f.regErr
}

func (f *fakeVault) OnlineUnlock(_ context.Context, user string, pass []byte) error {
	f.calls = append(f.calls, "online")
	f.pass = append([]byte(nil), pass...)
	if f.onlineErr == nil {
		f.username = user
	}
	return f.onlineErr
}

func (f *fakeVault) OfflineUnlock(_ context.Context, user string, pass []byte) error {
	f.calls = append(f.calls, "offline")
	if f.offlineErr == nil {
		f.username = user
	}
	return f.offlineErr
}

func (f *fakeVault) ChangePassphrase(_ context.Context, old, next []byte) error {
	f.calls = append(f.calls, "passwd:"+string(old)+">"+string(next))
	return f.changeErr
}

func (f *fakeVault) Lock(context.Context) { f.calls = append(f.calls, "lock") }

func (f *fakeVault) Logout(context.Context) error {
	f.calls = append(f.calls, "logout")
	f.username = ""
	return f.logoutErr
}

func (f *fakeVault) Username() string               { return f.username }
func (f *fakeVault) Ping(context.Context) error     { return nil }
func (f *fakeVault) Close(ctx context.Context) error { return nil }

type fakeNotebook struct {
	services.NotebookService

	items      []services.Item
	refreshErr error
	loadErr    error
	undo       history.Action
	sessions   []api.Session

	calls []string
	args  []string
}

func (f *fakeNotebook) call(name string, args ...string) {
	f.calls = append(f.calls, name)
	f.args = append(f.args, args...)
}

func (f *fakeNotebook) Refresh(context.Context) error   { f.call("refresh"); return f.refreshErr }
func (f *fakeNotebook) LoadLocal(context.Context) error { f.call("load"); return f.loadErr }
func (f *fakeNotebook) Items() []services.Item          { return f.items }
func (f *fakeNotebook) Reset()                          { f.call("reset") }

func (f *fakeNotebook) Create(_ context.Context, title, body string) (history.NoteSnapshot, error) {
	f.call("create", title, body)
	return history.NoteSnapshot{ID: "0123456789abcdef", Title: title, Body: body}, nil
}

func (f *fakeNotebook) Update(_ context.Context, id, title, body string) (history.NoteSnapshot, error) {
	f.call("update", id, title, body)
	return history.NoteSnapshot{ID: id, Title: title, Body: body}, nil
}

func (f *fakeNotebook) Delete(_ context.Context, id string) error {
	f.call("delete", id)
	return nil
}

func (f *fakeNotebook) Undo(context.Context) (history.Action, bool, error) {
	f.call("undo")
	return f.undo, f.undo != nil, nil
}

func (f *fakeNotebook) Redo(context.Context) (history.Action, bool, error) {
	f.call("redo")
	return nil, false, nil
}

func (f *fakeNotebook) Move(_ context.Context, section string, from, to int) error {
	f.call("move", section, strconv.Itoa(from), strconv.Itoa(to))
	return nil
}

func (f *fakeNotebook) Pin(_ context.Context, id string) error   { f.call("pin", id); return nil }
func (f *fakeNotebook) Unpin(_ context.Context, id string) error { f.call("unpin", id); return nil }

func (f *fakeNotebook) Sessions(context.Context) ([]api.Session, error) {
	f.call("sessions")
	return f.sessions, nil
}

func (f *fakeNotebook) RevokeSession(_ context.Context, id string) error {
	f.call("revoke", id)
	return nil
}

func (f *fakeNotebook) RevokeOtherSessions(context.Context) error {
	f.call("revoke-others")
	return nil
}

func (f *fakeNotebook) Backup(context.Context) (string, error) {
	f.call("backup")
	return "backups/u/1.json", nil
}

func (f *fakeNotebook) Restore(_ context.Context, key string) error {
	f.call("restore", key)
	return nil
}

// Watch blocks like the real stream until the app stops it.
func (f *fakeNotebook) Watch(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

func newTestApp(v *fakeVault, nb *fakeNotebook, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	return &App{
		config:   &config.Config{RequestTimeout: time.Second},
		vault:    v,
		notebook: nb,
		logger:   logging.Nop(),
		reader:   bufio.NewReader(strings.NewReader(input)),
		out:      &out,
	}, &out
}

func stubPasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := getPassword
	i := 0
	getPassword = func(string, io.Writer) ([]byte, error) {
		if i >= len(pws) {
			return nil, io.EOF
		}
		pw := []byte(pws[i])
		i++
		return pw, nil
	}
	t.Cleanup(func() { getPassword = orig })
}

func sampleItems() []services.Item {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []services.Item{
		{Note: history.NoteSnapshot{ID: "aaaa1111-0000", Title: "first", Body: "one", CreatedAt: at}, Pinned: true},
		{Note: history.NoteSnapshot{ID: "bbbb2222-0000", Title: "second", Body: "two", CreatedAt: at}},
		{Note: history.NoteSnapshot{ID: "bbbb3333-0000", Title: "third", Body: "three", CreatedAt: at}},
	}
}
