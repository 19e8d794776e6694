package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, s.ID, s.UserID, s.Token, s.UserAgent, s.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `
		SELECT id, user_id, token, user_agent, expires_at, created_at
		FROM sessions
		WHERE token = $1
	`
	s := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, token).Scan(&s.ID, &s.UserID, &s.Token, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return s, nil
}

func (r *PostgresRepository) Rotate(ctx context.Context, id, token string, expiresAt time.Time) error {
	query := `
		UPDATE sessions SET token = $2, expires_at = $3
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]models.Session, error) {
	query := `
		SELECT id, user_id, user_agent, expires_at, created_at
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Active(ctx context.Context, userID, id string, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sessions
			WHERE id = $1 AND user_id = $2 AND expires_at > $3
		)
	`
	var ok bool
	if err := r.db.QueryRowContext(ctx, query, id, userID, now).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, username, sessionID string) error {
	query := `
		DELETE FROM sessions
		WHERE id = $2 AND user_id = (SELECT id FROM users WHERE username = $1)
	`
	res, err := r.db.ExecContext(ctx, query, username, sessionID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return requireAffected(res)
}

func (r *PostgresRepository) DeleteOtherSessions(ctx context.Context, username, keepSessionID string) error {
	query := `
		DELETE FROM sessions
		WHERE id <> $2 AND user_id = (SELECT id FROM users WHERE username = $1)
	`
	if _, err := r.db.ExecContext(ctx, query, username, keepSessionID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteAllSessions(ctx context.Context, username string) error {
	query := `
		DELETE FROM sessions
		WHERE user_id = (SELECT id FROM users WHERE username = $1)
	`
	if _, err := r.db.ExecContext(ctx, query, username); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
