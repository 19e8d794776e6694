// Package repomanager hands out repositories bound to a DBTX, so services can
// run the same repository code inside or outside a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/boards"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/events"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/wrappedkeys"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	WrappedKeys(db dbx.DBTX) wrappedkeys.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Notes(db dbx.DBTX) notes.Repository
	Events(db dbx.DBTX) events.Repository
	Boards(db dbx.DBTX) boards.Repository
}
