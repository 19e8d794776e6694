// Package boards persists the manual note order of each user's board.
package boards

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// Get returns the saved order. A user without a saved board gets
	// common.ErrorNotFound.
	Get(ctx context.Context, userID string) (*models.Board, error)
	Save(ctx context.Context, b *models.Board) error
}
