// Package users persists shopsync accounts. An account id is the owner id
// that partitions every synced record.
package users

import (
	"context"

	"github.com/dmitrijs2005/shopsync/internal/server/models"
)

type Repository interface {
	// Create inserts the user and fills in its id. A taken username yields
	// common.ErrAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
}
