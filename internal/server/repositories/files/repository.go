package files

import (
	"context"

	"github.com/aelouarti/partage/internal/server/models"
)

// Repository persists file metadata. The bytes themselves live in object
// storage and are referenced by StorageKey.
type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)

	// ListSharedWith returns files the user can view through a share.
	ListSharedWith(ctx context.Context, userID string) ([]*models.File, error)

	// StorageKeysByOwner lists the storage keys of all files owned by the
	// user, so stored bytes can be removed before a cascading delete.
	StorageKeysByOwner(ctx context.Context, ownerID string) ([]string, error)

	SetShared(ctx context.Context, id string, shared bool) error
	Delete(ctx context.Context, id string) error
}
