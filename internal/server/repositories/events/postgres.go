package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, e *models.NoteEvent) error {
	query := `
		INSERT INTO note_events (id, user_id, note_id, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING seq, created_at
	`
	var noteID sql.NullString
	if e.NoteID != "" {
		noteID = sql.NullString{String: e.NoteID, Valid: true}
	}
	if err := r.db.QueryRowContext(ctx, query, e.ID, e.UserID, noteID, e.Kind).Scan(&e.Seq, &e.CreatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Latest(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT id FROM note_events
		WHERE user_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`
	var id string
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id, nil
}
