package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
)

// BoardService keeps the manual note order of each account consistent with
// the notes that actually exist.
type BoardService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

func NewBoardService(db *sql.DB, m repomanager.RepositoryManager) *BoardService {
	return &BoardService{db: db, repomanager: m}
}

// Get returns the saved order reconciled with the live note ids. An account
// without a saved board gets every note in the other section.
func (s *BoardService) Get(ctx context.Context, userID string) (board.Order, error) {
	ids, err := s.repomanager.Notes(s.db).IDs(ctx, userID)
	if err != nil {
		return board.Order{}, fmt.Errorf("error listing note ids: %w", err)
	}

	saved := board.Order{}
	b, err := s.repomanager.Boards(s.db).Get(ctx, userID)
	switch {
	case err == nil:
		saved = board.Order{Pinned: b.Pinned, Other: b.Other}
	case !errors.Is(err, common.ErrorNotFound):
		return board.Order{}, fmt.Errorf("error loading board: %w", err)
	}
	return saved.Reconcile(ids), nil
}

// Save stores order after dropping ids of notes that no longer exist and
// returns what was stored together with the appended event id.
func (s *BoardService) Save(ctx context.Context, userID string, order board.Order) (board.Order, string, error) {
	type result struct {
		order   board.Order
		eventID string
	}

	res, err := dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (result, error) {
		ids, err := s.repomanager.Notes(tx).IDs(ctx, userID)
		if err != nil {
			return result{}, fmt.Errorf("error listing note ids: %w", err)
		}
		rec := order.Reconcile(ids)
		if err := s.repomanager.Boards(tx).Save(ctx, &models.Board{UserID: userID, Pinned: rec.Pinned, Other: rec.Other}); err != nil {
			return result{}, fmt.Errorf("error saving board: %w", err)
		}
		eventID, err := appendEvent(ctx, s.repomanager, tx, userID, "", models.EventBoardSaved)
		if err != nil {
			return result{}, err
		}
		return result{order: rec, eventID: eventID}, nil
	})
	if err != nil {
		return board.Order{}, "", err
	}
	return res.order, res.eventID, nil
}
