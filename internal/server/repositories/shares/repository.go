package shares

import (
	"context"

	"github.com/aelouarti/partage/internal/server/models"
)

// Repository persists the ACL relation: one row per (file, user) pair
// carrying the permission triple.
type Repository interface {
	// Upsert inserts the share or, when the (file, user) pair already
	// exists, replaces its permission triple.
	Upsert(ctx context.Context, share *models.Share) error

	Get(ctx context.Context, fileID, userID string) (*models.Share, error)

	// ListByFile returns the shares on a file together with each grantee's
	// email, ordered by grant time.
	ListByFile(ctx context.Context, fileID string) ([]*models.Share, error)

	Delete(ctx context.Context, fileID, userID string) error

	// CountByFile returns the number of share rows currently on the file.
	CountByFile(ctx context.Context, fileID string) (int, error)
}
