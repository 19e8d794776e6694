package wrappedkeys

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

func (r *PostgresRepository) Upsert(ctx context.Context, key *models.WrappedKey) error {
	query := `
		INSERT INTO wrapped_keys (user_id, kdf_salt, wrapped_key, wrap_nonce, wrap_algorithm, kdf_params, verifier, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (user_id) DO UPDATE SET
			kdf_salt = EXCLUDED.kdf_salt,
			wrapped_key = EXCLUDED.wrapped_key,
			wrap_nonce = EXCLUDED.wrap_nonce,
			wrap_algorithm = EXCLUDED.wrap_algorithm,
			kdf_params = EXCLUDED.kdf_params,
			verifier = EXCLUDED.verifier,
			updated_at = now()
	`
	_, err := r.db.ExecContext(ctx, query,
		key.UserID, key.KDFSalt, key.WrappedKey, key.WrapNonce, key.WrapAlgorithm, []byte(key.KDFParams), key.Verifier)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*models.WrappedKey, error) {
	query := `
		SELECT user_id, kdf_salt, wrapped_key, wrap_nonce, wrap_algorithm, kdf_params, verifier, updated_at
		FROM wrapped_keys
		WHERE user_id = $1
	`
	key := &models.WrappedKey{}
	var params []byte
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&key.UserID, &key.KDFSalt, &key.WrappedKey, &key.WrapNonce, &key.WrapAlgorithm, &params, &key.Verifier, &key.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	key.KDFParams = params
	return key, nil
}
