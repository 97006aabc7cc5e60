// Package services contains the server-side business logic: the
// authentication state machine, the two-factor lifecycle, the ACL engine,
// the access gate, and file handling.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/logging"
	"github.com/aelouarti/partage/internal/server/auth"
	"github.com/aelouarti/partage/internal/server/config"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// timeNow is a seam for tests that need a fixed clock.
var timeNow = time.Now

// LoginResult is the outcome of a successful first authentication step.
// When SecondFactorRequired is set, Token is empty: the session token is
// issued only after the one-time code is verified.
type LoginResult struct {
	Token                string
	SecondFactorRequired bool
	UserID               string
}

// UserService implements registration and the password/lockout
// authentication state machine, and issues session tokens.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStorage
	logger      logging.Logger
	jwtSecret   []byte

	tokenValidity    time.Duration
	maxLoginAttempts int
	lockoutDuration  time.Duration
	emailPattern     *regexp.Regexp
}

// NewUserService constructs a UserService using repositories, the storage
// collaborator (needed for cascading account deletion), and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStorage, l logging.Logger, cfg *config.Config) *UserService {
	pattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@` + regexp.QuoteMeta(cfg.AllowedEmailDomain) + `$`)
	return &UserService{
		db:               db,
		repomanager:      m,
		store:            store,
		logger:           l.With("module", "users"),
		jwtSecret:        []byte(cfg.SecretKey),
		tokenValidity:    cfg.AccessTokenValidityDuration,
		maxLoginAttempts: cfg.MaxLoginAttempts,
		lockoutDuration:  cfg.LockoutDuration,
		emailPattern:     pattern,
	}
}

// Register creates a new user. The email must belong to the allowed
// organization domain; the check runs before any persistence access.
func (s *UserService) Register(ctx context.Context, email, password, displayName string) (*models.User, error) {
	if !s.emailPattern.MatchString(email) {
		return nil, common.ErrInvalidEmail
	}

	repo := s.repomanager.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrInternal
	}

	if displayName != "" {
		if _, err := repo.GetByDisplayName(ctx, displayName); err == nil {
			return nil, common.ErrDisplayNameTaken
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInternal
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrInternal
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Status:       "active",
	}
	if _, err := repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return user, nil
}

// Login runs the password step of authentication. Outcomes:
//   - unknown email or wrong password: ErrInvalidCredentials (identical in
//     both cases, so responses do not reveal whether the account exists)
//   - account locked: LockedError with the remaining whole seconds
//   - password ok, TOTP enabled: SecondFactorRequired result, no token
//   - password ok, TOTP disabled: session token
func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}

	if user.LockoutUntil != nil && user.LockoutUntil.After(timeNow()) {
		return nil, &common.LockedError{RetryAfter: remainingSeconds(*user.LockoutUntil)}
	}

	if !auth.VerifyPassword(password, user.PasswordHash) {
		attempts, lockedUntil, err := repo.RecordLoginFailure(ctx, user.ID, s.maxLoginAttempts, s.lockoutDuration)
		if err != nil {
			return nil, common.ErrInternal
		}
		// The counter rolls back to zero exactly when the lockout arms.
		if attempts == 0 && lockedUntil != nil && lockedUntil.After(timeNow()) {
			return nil, &common.LockedError{RetryAfter: remainingSeconds(*lockedUntil)}
		}
		return nil, common.ErrInvalidCredentials
	}

	if err := repo.ResetLoginState(ctx, user.ID); err != nil {
		return nil, common.ErrInternal
	}

	if user.TOTPEnabled {
		return &LoginResult{SecondFactorRequired: true, UserID: user.ID}, nil
	}

	token, err := auth.IssueToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, common.ErrInternal
	}
	return &LoginResult{Token: token, UserID: user.ID}, nil
}

// VerifySecondFactor completes a two-step login. A failed code does not
// touch the password-lockout counters.
func (s *UserService) VerifySecondFactor(ctx context.Context, userID, code string) (*LoginResult, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrInternal
	}

	if !user.TOTPEnabled {
		return nil, common.ErrTOTPNotEnabled
	}
	if !validateTOTP(code, user.TOTPSecret) {
		return nil, common.ErrInvalidCode
	}

	token, err := auth.IssueToken(user.ID, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, common.ErrInternal
	}
	return &LoginResult{Token: token, UserID: user.ID}, nil
}

// CurrentUser returns the user bound to an authenticated session.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.ErrInternal
	}
	return user, nil
}

// ListUsers returns all users.
func (s *UserService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// SearchUsers matches users by email or display-name substring, excluding
// the requester.
func (s *UserService) SearchUsers(ctx context.Context, requesterID, query string) ([]*models.User, error) {
	repo := s.repomanager.Users(s.db)

	var found []*models.User
	var err error
	if query == "" {
		found, err = repo.List(ctx)
	} else {
		found, err = repo.Search(ctx, query)
	}
	if err != nil {
		return nil, common.ErrInternal
	}

	result := make([]*models.User, 0, len(found))
	for _, u := range found {
		if u.ID != requesterID {
			result = append(result, u)
		}
	}
	return result, nil
}

// DeleteUser removes the account with the given email along with its files
// and shares. Only admins may call it. The stored bytes of owned files are
// removed first; a storage failure is logged but does not block the delete.
func (s *UserService) DeleteUser(ctx context.Context, requesterID, email string) error {
	repo := s.repomanager.Users(s.db)

	requester, err := repo.GetByID(ctx, requesterID)
	if err != nil {
		return common.ErrInternal
	}
	if !requester.IsAdmin() {
		return &common.ForbiddenError{Permission: "admin"}
	}

	target, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrInternal
	}

	keys, err := s.repomanager.Files(s.db).StorageKeysByOwner(ctx, target.ID)
	if err != nil {
		return common.ErrInternal
	}
	for _, key := range keys {
		if err := s.store.Remove(ctx, key); err != nil {
			s.logger.Warn(ctx, "failed to remove stored object", "key", key, "error", err)
		}
	}

	// Owned files and shares go with the row via FK cascades.
	if err := repo.DeleteByEmail(ctx, email); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrInternal
	}
	return nil
}

// remainingSeconds returns the whole seconds until the deadline, rounded up
// so a lock never reports zero while still active, and never negative.
func remainingSeconds(until time.Time) int64 {
	remaining := until.Sub(timeNow())
	if remaining <= 0 {
		return 0
	}
	secs := int64((remaining + time.Second - 1) / time.Second)
	return secs
}
