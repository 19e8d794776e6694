// Package sessions declares the repository of logged-in devices.
package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

// Repository manages sessions. The delete methods are keyed by username so
// the repository can back the session-change notifier directly.
type Repository interface {
	Create(ctx context.Context, s *models.Session) error
	// FindByToken returns common.ErrorNotFound for unknown refresh tokens.
	FindByToken(ctx context.Context, token string) (*models.Session, error)
	// Rotate replaces the refresh token of session id. It returns
	// common.ErrorNotFound if the session no longer exists.
	Rotate(ctx context.Context, id, token string, expiresAt time.Time) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
	// Active reports whether session id of userID exists and expires after now.
	Active(ctx context.Context, userID, id string, now time.Time) (bool, error)

	// DeleteSession returns common.ErrorNotFound if username has no such
	// session.
	DeleteSession(ctx context.Context, username, sessionID string) error
	DeleteOtherSessions(ctx context.Context, username, keepSessionID string) error
	DeleteAllSessions(ctx context.Context, username string) error
}
