// Package notes stores encrypted note bodies.
package notes

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// Upsert creates the note or replaces its ciphertext. A note id owned by
	// another user yields common.ErrorNotFound.
	Upsert(ctx context.Context, n *models.Note) error
	// Delete returns common.ErrorNotFound if the user has no such note.
	Delete(ctx context.Context, userID, noteID string) error
	List(ctx context.Context, userID string) ([]models.Note, error)
	IDs(ctx context.Context, userID string) ([]string, error)
}
