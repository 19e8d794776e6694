package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Upsert creates or replaces n. A non-zero n.CreatedAt is kept on insert so a
// restored note keeps its original creation time; an existing row keeps its own.
func (r *PostgresRepository) Upsert(ctx context.Context, n *models.Note) error {
	query := `
		INSERT INTO notes (id, user_id, ciphertext, nonce, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
		ON CONFLICT (id) DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			nonce = EXCLUDED.nonce,
			updated_at = now()
		WHERE notes.user_id = EXCLUDED.user_id
		RETURNING created_at, updated_at
	`
	createdAt := sql.NullTime{Time: n.CreatedAt, Valid: !n.CreatedAt.IsZero()}
	err := r.db.QueryRowContext(ctx, query, n.ID, n.UserID, n.Ciphertext, n.Nonce, createdAt).Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, noteID string) error {
	query := `
		DELETE FROM notes
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, noteID, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]models.Note, error) {
	query := `
		SELECT id, user_id, ciphertext, nonce, created_at, updated_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Ciphertext, &n.Nonce, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) IDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT id FROM notes
		WHERE user_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ids, nil
}
