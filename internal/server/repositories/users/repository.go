// Package users declares the server-side repository contract for accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophnotes/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills its ID. A taken username yields
	// common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	// GetByUsername returns common.ErrorNotFound for unknown users.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}
