// Package wrappedkeys stores each user's wrapped data key and login verifier.
package wrappedkeys

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// Upsert creates or replaces the record of key.UserID.
	Upsert(ctx context.Context, key *models.WrappedKey) error
	// Get returns common.ErrorNotFound when the user has no key yet.
	Get(ctx context.Context, userID string) (*models.WrappedKey, error)
}
