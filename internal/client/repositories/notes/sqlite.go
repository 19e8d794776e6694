package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, n *models.Note) error {
	query := `INSERT INTO notes (id, ciphertext, nonce, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET ciphertext = excluded.ciphertext,
				nonce = excluded.nonce,
				updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query, n.ID, n.Ciphertext, n.Nonce, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT id, ciphertext, nonce, created_at, updated_at FROM notes WHERE id = ?`

	n := &models.Note{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&n.ID, &n.Ciphertext, &n.Nonce, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get note: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Note, error) {
	query := `SELECT id, ciphertext, nonce, created_at, updated_at FROM notes ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	result := []*models.Note{}
	for rows.Next() {
		n := &models.Note{}
		if err := rows.Scan(&n.ID, &n.Ciphertext, &n.Nonce, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate note rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notes`); err != nil {
		return fmt.Errorf("failed to clear notes: %w", err)
	}
	return nil
}
