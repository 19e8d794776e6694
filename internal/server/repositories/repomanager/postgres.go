package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/migrations"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/boards"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/wrappedkeys"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) WrappedKeys(db dbx.DBTX) wrappedkeys.Repository {
	return wrappedkeys.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Notes(db dbx.DBTX) notes.Repository {
	return notes.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Boards(db dbx.DBTX) boards.Repository {
	return boards.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
