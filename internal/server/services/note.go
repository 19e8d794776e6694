package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// NoteService stores encrypted notes. Every mutation appends to the event
// log in the same transaction, which is what the change ticker watches.
type NoteService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewNoteService(db *sql.DB, m repomanager.RepositoryManager) *NoteService {
	return &NoteService{db: db, repomanager: m}
}

// Save creates or replaces note n of userID and returns the id of the
// appended event. Note ids are chosen by the client and must be UUIDs.
func (s *NoteService) Save(ctx context.Context, userID string, n *models.Note) (string, error) {
	if _, err := uuid.Parse(n.ID); err != nil {
		return "", common.ErrorValidation
	}
	if len(n.Ciphertext) == 0 || len(n.Nonce) == 0 {
		return "", common.ErrorValidation
	}
	n.UserID = userID

	return dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		if err := s.repomanager.Notes(tx).Upsert(ctx, n); err != nil {
			return "", fmt.Errorf("error saving note: %w", err)
		}
		return s.appendEvent(ctx, tx, userID, n.ID, models.EventNoteSaved)
	})
}

// Delete removes note noteID of userID. Unknown notes yield
// common.ErrorNotFound.
func (s *NoteService) Delete(ctx context.Context, userID, noteID string) (string, error) {
	return dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (string, error) {
		if err := s.repomanager.Notes(tx).Delete(ctx, userID, noteID); err != nil {
			return "", fmt.Errorf("error deleting note: %w", err)
		}
		return s.appendEvent(ctx, tx, userID, noteID, models.EventNoteDeleted)
	})
}

func (s *NoteService) List(ctx context.Context, userID string) ([]models.Note, error) {
	return s.repomanager.Notes(s.db).List(ctx, userID)
}

// LatestEventID returns "" for an account that never changed anything.
func (s *NoteService) LatestEventID(ctx context.Context, userID string) (string, error) {
	return s.repomanager.Events(s.db).Latest(ctx, userID)
}

func (s *NoteService) appendEvent(ctx context.Context, tx dbx.DBTX, userID, noteID, kind string) (string, error) {
	return appendEvent(ctx, s.repomanager, tx, userID, noteID, kind)
}

func appendEvent(ctx context.Context, m repomanager.RepositoryManager, tx dbx.DBTX, userID, noteID, kind string) (string, error) {
	e := &models.NoteEvent{ID: uuid.NewString(), UserID: userID, NoteID: noteID, Kind: kind}
	if err := m.Events(tx).Append(ctx, e); err != nil {
		return "", fmt.Errorf("error appending event: %w", err)
	}
	return e.ID, nil
}
