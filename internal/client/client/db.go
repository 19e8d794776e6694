package client

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/gophnotes/internal/client/migrations"
	"github.com/dmitrijs2005/gophnotes/internal/filex"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn and migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one connection keeps ":memory:" databases and write ordering consistent
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenLocalStore creates dataDir if needed and initializes file inside it.
func OpenLocalStore(ctx context.Context, dataDir, file string) (*sql.DB, error) {
	dir, err := filex.EnsureDir(dataDir)
	if err != nil {
		return nil, err
	}
	return InitDatabase(ctx, filepath.Join(dir, file))
}
