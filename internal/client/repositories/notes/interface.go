package notes

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/client/models"
)

// Repository caches encrypted notes locally for offline reading.
type Repository interface {
	// Upsert inserts a note or replaces the cached copy with the same ID.
	Upsert(ctx context.Context, note *models.Note) error

	// Delete drops a note from the cache. Deleting an absent note is not an error.
	Delete(ctx context.Context, id string) error

	// GetByID returns common.ErrorNotFound when the note is not cached.
	GetByID(ctx context.Context, id string) (*models.Note, error)

	// List returns every cached note ordered by creation time.
	List(ctx context.Context) ([]*models.Note, error)

	// Clear empties the cache.
	Clear(ctx context.Context) error
}
