package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/dmitrijs2005/gophnotes/internal/dbx"
)

const upsertQuery = `
	INSERT INTO metadata (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
`

// SQLiteRepository keeps metadata in the local SQLite file. Pass a *sql.Tx
// to group writes with other local changes.
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata %q: %w", key, err)
	}
	return value, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	if _, err := r.db.ExecContext(ctx, upsertQuery, key, value); err != nil {
		return fmt.Errorf("write metadata %q: %w", key, err)
	}
	return nil
}

// SetMany writes values in key order and stops at the first failure. It is
// atomic only when the repository wraps a transaction.
func (r *SQLiteRepository) SetMany(ctx context.Context, values map[string][]byte) error {
	for _, key := range slices.Sorted(maps.Keys(values)) {
		if err := r.Set(ctx, key, values[key]); err != nil {
			return err
		}
	}
	return nil
}

// Clear forgets all account state, e.g. on logout or user switch.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM metadata`); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	return nil
}
