package users

import (
	"context"
	"time"

	"github.com/aelouarti/partage/internal/server/models"
)

// Repository persists user identity and credential state. Implementations
// must keep the credential mutations (login counters, TOTP transitions)
// atomic per user.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByDisplayName(ctx context.Context, displayName string) (*models.User, error)

	// GetByIDForUpdate locks the user row for the rest of the enclosing
	// transaction. Only meaningful when the repository is bound to a tx.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)

	// RecordLoginFailure increments the failed-login counter and, when the
	// counter reaches maxAttempts, resets it to zero and arms the lockout
	// for lockoutFor. Both happen in one statement so concurrent failures
	// cannot each observe the same counter value. Returns the post-update
	// counter and lockout deadline.
	RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutFor time.Duration) (int, *time.Time, error)

	// ResetLoginState zeroes the failed-login counter and clears the lockout.
	ResetLoginState(ctx context.Context, id string) error

	SetPendingTOTPSecret(ctx context.Context, id, secret string) error
	EnableTOTP(ctx context.Context, id string) error
	DisableTOTP(ctx context.Context, id string) error

	List(ctx context.Context) ([]*models.User, error)
	Search(ctx context.Context, query string) ([]*models.User, error)
	DeleteByEmail(ctx context.Context, email string) error
}
