// Package events is the append-only log of note and board changes. Its
// newest id drives the change ticker.
package events

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// Append records e and fills its sequence number.
	Append(ctx context.Context, e *models.NoteEvent) error
	// Latest returns the id of the newest event of userID, or "" if there
	// is none.
	Latest(ctx context.Context, userID string) (string, error)
}
