package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/history"
	"github.com/dmitrijs2005/gophnotes/internal/logging"
	"github.com/dmitrijs2005/gophnotes/internal/notifier"
	"github.com/google/uuid"
)

var timeNow = time.Now

// Item is one note as shown on the board.
type Item struct {
	Note   history.NoteSnapshot
	Pinned bool
}

// NotebookService is the client's view of the user's notes. Edits go to the
// server first; the in-memory note set, the local cache and the undo history
// follow only after the server accepted them.
type NotebookService interface {
	Refresh(ctx context.Context) error
	LoadLocal(ctx context.Context) error
	Items() []Item
	Get(id string) (history.NoteSnapshot, error)

	Create(ctx context.Context, title, body string) (history.NoteSnapshot, error)
	Update(ctx context.Context, id, title, body string) (history.NoteSnapshot, error)
	Delete(ctx context.Context, id string) error
	Undo(ctx context.Context) (history.Action, bool, error)
	Redo(ctx context.Context) (history.Action, bool, error)

	Move(ctx context.Context, section string, from, to int) error
	Pin(ctx context.Context, id string) error
	Unpin(ctx context.Context, id string) error

	Sessions(ctx context.Context) ([]api.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeOtherSessions(ctx context.Context) error

	Watch(ctx context.Context, onSessionsChanged func()) error
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, key string) error
	Reset()
}

type notebookService struct {
	client client.Client
	db     *sql.DB
	keys   KeyProvider
	logger logging.Logger

	// mu serializes edits, undo/redo and refreshes.
	mu         sync.Mutex
	notes      *history.NoteSet
	history    *history.History
	order      board.Order
	lastSeenID string
}

func NewNotebookService(c client.Client, db *sql.DB, keys KeyProvider, historyLimit int, logger logging.Logger) NotebookService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &notebookService{
		client:  c,
		db:      db,
		keys:    keys,
		logger:  logger,
		notes:   history.NewNoteSet(),
		history: history.New(historyLimit),
		order:   board.Order{Pinned: []string{}, Other: []string{}},
	}
}

// remoteTarget applies undo and redo through the server.
type remoteTarget struct {
	ctx context.Context
	s   *notebookService
}

func (t remoteTarget) Put(n history.NoteSnapshot) error { return t.s.put(t.ctx, n) }
func (t remoteTarget) Remove(id string) error           { return t.s.remove(t.ctx, id) }

func (s *notebookService) withKey(ctx context.Context, fn func(dek []byte) error) error {
	dek, err := s.keys.DataKey(ctx)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(dek)
	return fn(dek)
}

func decryptNote(n *models.Note, dek []byte) (history.NoteSnapshot, error) {
	var p models.NotePayload
	if err := cryptox.DecryptPayload(n.Ciphertext, n.Nonce, dek, &p); err != nil {
		return history.NoteSnapshot{}, fmt.Errorf("note %s: %w", n.ID, err)
	}
	return history.NoteSnapshot{ID: n.ID, Title: p.Title, Body: p.Body, CreatedAt: n.CreatedAt}, nil
}

// put stores n on the server, then locally. The caller holds mu.
func (s *notebookService) put(ctx context.Context, n history.NoteSnapshot) error {
	return s.withKey(ctx, func(dek []byte) error {
		ct, nonce, err := cryptox.EncryptPayload(models.NotePayload{Title: n.Title, Body: n.Body}, dek)
		if err != nil {
			return err
		}

		local := &models.Note{ID: n.ID, Ciphertext: ct, Nonce: nonce, CreatedAt: n.CreatedAt, UpdatedAt: timeNow().UTC()}
		eventID, err := s.client.SaveNote(ctx, api.Note{
			ID:         local.ID,
			Ciphertext: local.Ciphertext,
			Nonce:      local.Nonce,
			CreatedAt:  local.CreatedAt,
			UpdatedAt:  local.UpdatedAt,
		})
		if err != nil {
			return err
		}

		if err := notes.NewSQLiteRepository(s.db).Upsert(ctx, local); err != nil {
			s.logger.Warn(ctx, "note cache update failed", "note_id", n.ID, "error", err)
		}
		_ = s.notes.Put(n)
		s.afterLocalChange(ctx, eventID)
		return nil
	})
}

// remove deletes id on the server, then locally. A note that is already gone
// on the server counts as removed. The caller holds mu.
func (s *notebookService) remove(ctx context.Context, id string) error {
	eventID, err := s.client.DeleteNote(ctx, id)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}

	if err := notes.NewSQLiteRepository(s.db).Delete(ctx, id); err != nil {
		s.logger.Warn(ctx, "note cache update failed", "note_id", id, "error", err)
	}
	_ = s.notes.Remove(id)
	s.afterLocalChange(ctx, eventID)
	return nil
}

func (s *notebookService) afterLocalChange(ctx context.Context, eventID string) {
	if eventID != "" {
		s.lastSeenID = eventID
	}
	s.order = s.order.Reconcile(s.notes.IDs())
	s.persistLocalState(ctx)
}

func (s *notebookService) persistLocalState(ctx context.Context) {
	raw, err := json.Marshal(s.order)
	if err == nil {
		err = metadata.NewSQLiteRepository(s.db).SetMany(ctx, map[string][]byte{
			metadata.KeyBoardOrder: raw,
			metadata.KeyLastSeenID: []byte(s.lastSeenID),
		})
	}
	if err != nil {
		s.logger.Warn(ctx, "local state update failed", "error", err)
	}
}

// Refresh replaces the note set with the server state and rebuilds the
// local cache. A note that cannot be decrypted aborts the refresh.
func (s *notebookService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh(ctx)
}

func (s *notebookService) refresh(ctx context.Context) error {
	remote, latest, err := s.client.ListNotes(ctx)
	if err != nil {
		return err
	}
	order, err := s.client.GetBoard(ctx)
	if err != nil {
		return err
	}

	cached := make([]*models.Note, 0, len(remote))
	for _, n := range remote {
		cached = append(cached, &models.Note{ID: n.ID, Ciphertext: n.Ciphertext, Nonce: n.Nonce, CreatedAt: n.CreatedAt, UpdatedAt: n.UpdatedAt})
	}

	snaps, err := s.decryptAll(ctx, cached)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := notes.NewSQLiteRepository(tx)
		if err := repo.Clear(ctx); err != nil {
			return err
		}
		for _, n := range cached {
			if err := repo.Upsert(ctx, n); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update note cache: %w", err)
	}

	s.notes.Replace(snaps)
	s.order = order
	s.lastSeenID = latest
	s.order = s.order.Reconcile(s.notes.IDs())
	s.persistLocalState(ctx)
	return nil
}

// LoadLocal fills the note set from the local cache, for offline use.
func (s *notebookService) LoadLocal(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, err := notes.NewSQLiteRepository(s.db).List(ctx)
	if err != nil {
		return err
	}
	snaps, err := s.decryptAll(ctx, cached)
	if err != nil {
		return err
	}

	repo := metadata.NewSQLiteRepository(s.db)
	rawOrder, err := repo.Get(ctx, metadata.KeyBoardOrder)
	if err != nil {
		return err
	}
	lastSeen, err := repo.Get(ctx, metadata.KeyLastSeenID)
	if err != nil {
		return err
	}

	s.notes.Replace(snaps)
	s.order = board.DecodeOrder(rawOrder).Reconcile(s.notes.IDs())
	s.lastSeenID = string(lastSeen)
	return nil
}

func (s *notebookService) decryptAll(ctx context.Context, in []*models.Note) ([]history.NoteSnapshot, error) {
	out := make([]history.NoteSnapshot, 0, len(in))
	err := s.withKey(ctx, func(dek []byte) error {
		for _, n := range in {
			snap, err := decryptNote(n, dek)
			if err != nil {
				return err
			}
			out = append(out, snap)
		}
		return nil
	})
	return out, err
}

// Items lists the notes in board order, pinned first.
func (s *notebookService) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]Item, 0, len(s.order.Pinned)+len(s.order.Other))
	for _, id := range s.order.Pinned {
		if n, ok := s.notes.Get(id); ok {
			items = append(items, Item{Note: n, Pinned: true})
		}
	}
	for _, id := range s.order.Other {
		if n, ok := s.notes.Get(id); ok {
			items = append(items, Item{Note: n})
		}
	}
	return items
}

func (s *notebookService) Get(id string) (history.NoteSnapshot, error) {
	n, ok := s.notes.Get(id)
	if !ok {
		return history.NoteSnapshot{}, common.ErrorNotFound
	}
	return n, nil
}

func (s *notebookService) Create(ctx context.Context, title, body string) (history.NoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := history.NoteSnapshot{ID: uuid.NewString(), Title: title, Body: body, CreatedAt: timeNow().UTC()}
	if err := s.put(ctx, n); err != nil {
		return history.NoteSnapshot{}, err
	}
	s.history.Record(history.CreateAction{Note: n})
	return n, nil
}

func (s *notebookService) Update(ctx context.Context, id, title, body string) (history.NoteSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.notes.Get(id)
	if !ok {
		return history.NoteSnapshot{}, common.ErrorNotFound
	}
	after := before
	after.Title = title
	after.Body = body

	if err := s.put(ctx, after); err != nil {
		return history.NoteSnapshot{}, err
	}
	s.history.Record(history.UpdateAction{Before: before, After: after})
	return after, nil
}

func (s *notebookService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before, ok := s.notes.Get(id)
	if !ok {
		return common.ErrorNotFound
	}
	if err := s.remove(ctx, id); err != nil {
		return err
	}
	s.history.Record(history.DeleteAction{Note: before})
	return nil
}

func (s *notebookService) Undo(ctx context.Context) (history.Action, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Undo(remoteTarget{ctx: ctx, s: s})
}

func (s *notebookService) Redo(ctx context.Context) (history.Action, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Redo(remoteTarget{ctx: ctx, s: s})
}

func (s *notebookService) Move(ctx context.Context, section string, from, to int) error {
	return s.saveBoard(ctx, func(o board.Order) (board.Order, error) { return o.Move(section, from, to) })
}

func (s *notebookService) Pin(ctx context.Context, id string) error {
	return s.saveBoard(ctx, func(o board.Order) (board.Order, error) { return o.Pin(id) })
}

func (s *notebookService) Unpin(ctx context.Context, id string) error {
	return s.saveBoard(ctx, func(o board.Order) (board.Order, error) { return o.Unpin(id) })
}

func (s *notebookService) saveBoard(ctx context.Context, change func(board.Order) (board.Order, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := change(s.order)
	if err != nil {
		return err
	}
	saved, err := s.client.SaveBoard(ctx, next)
	if err != nil {
		return err
	}
	s.order = saved.Reconcile(s.notes.IDs())
	s.persistLocalState(ctx)
	return nil
}

func (s *notebookService) Sessions(ctx context.Context) ([]api.Session, error) {
	return s.client.ListSessions(ctx)
}

func (s *notebookService) RevokeSession(ctx context.Context, sessionID string) error {
	return s.client.RevokeSession(ctx, sessionID)
}

func (s *notebookService) RevokeOtherSessions(ctx context.Context) error {
	return s.client.RevokeOtherSessions(ctx)
}

// Watch follows the server's change stream until ctx is done. A change the
// client has not seen triggers Refresh; a sessions event calls
// onSessionsChanged. Refresh failures are logged and the stream continues.
func (s *notebookService) Watch(ctx context.Context, onSessionsChanged func()) error {
	s.mu.Lock()
	cursor := s.lastSeenID
	s.mu.Unlock()

	return s.client.Watch(ctx, cursor, func(ev api.WatchEvent) error {
		switch {
		case ev.Ticker != nil && ev.Ticker.Changed():
			s.mu.Lock()
			defer s.mu.Unlock()
			if ev.Ticker.ID == s.lastSeenID {
				return nil
			}
			if err := s.refresh(ctx); err != nil {
				s.logger.Warn(ctx, "refresh after change failed", "error", err)
			}
		case ev.Account != nil && ev.Account.Type == notifier.EventSessionsChanged:
			if onSessionsChanged != nil {
				onSessionsChanged()
			}
		}
		return nil
	})
}

// Reset forgets the in-memory notes and history, e.g. on logout.
func (s *notebookService) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes.Replace(nil)
	s.history.Reset()
	s.order = board.Order{Pinned: []string{}, Other: []string{}}
	s.lastSeenID = ""
}
