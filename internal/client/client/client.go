package client

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Register(ctx context.Context, username string, wrapped *cryptox.WrappedDEK, verifier []byte) error
	GetSalt(ctx context.Context, username string) ([]byte, cryptox.KDFParams, error)
	Login(ctx context.Context, username string, verifier []byte) error
	Logout(ctx context.Context) error
	GetWrappedKey(ctx context.Context) (*cryptox.WrappedDEK, error)
	UpdateWrappedKey(ctx context.Context, oldVerifier, verifier []byte, wrapped *cryptox.WrappedDEK) error

	SaveNote(ctx context.Context, note api.Note) (string, error)
	DeleteNote(ctx context.Context, id string) (string, error)
	ListNotes(ctx context.Context) ([]api.Note, string, error)
	GetBoard(ctx context.Context) (board.Order, error)
	SaveBoard(ctx context.Context, order board.Order) (board.Order, error)
	Poll(ctx context.Context, lastSeenID string) (ticker.Payload, error)

	ListSessions(ctx context.Context) ([]api.Session, error)
	RevokeSession(ctx context.Context, sessionID string) error
	RevokeOtherSessions(ctx context.Context) error

	PresignBackup(ctx context.Context, key string) (*api.PresignBackupResponse, error)

	Watch(ctx context.Context, lastSeenID string, fn func(api.WatchEvent) error) error
}
