package boards

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get decodes the stored sections leniently: non-string entries and
// duplicates are dropped and a malformed column reads as empty.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.Board, error) {
	query := `
		SELECT pinned, other, updated_at FROM boards
		WHERE user_id = $1
	`
	var pinned, other []byte
	b := &models.Board{UserID: userID}
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&pinned, &other, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	b.Pinned = board.ToUniqueStrings(json.RawMessage(pinned))
	b.Other = board.ToUniqueStrings(json.RawMessage(other))
	return b, nil
}

func (r *PostgresRepository) Save(ctx context.Context, b *models.Board) error {
	pinned, err := marshalIDs(b.Pinned)
	if err != nil {
		return err
	}
	other, err := marshalIDs(b.Other)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO boards (user_id, pinned, other, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET
			pinned = EXCLUDED.pinned,
			other = EXCLUDED.other,
			updated_at = now()
	`
	if _, err := r.db.ExecContext(ctx, query, b.UserID, pinned, other); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func marshalIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("marshal board ids: %w", err)
	}
	return data, nil
}
