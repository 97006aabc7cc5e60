package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/server/config"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/repositories/repomanager"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpPeriod is the standard 30-second time step.
const totpPeriod = 30

// totpSecretSize yields a 160-bit shared secret (base32, 32 characters).
const totpSecretSize = 20

// validateTOTP checks a six-digit code against the secret with a ±1 step
// window to tolerate clock skew.
func validateTOTP(code, secret string) bool {
	ok, err := totp.ValidateCustom(code, secret, timeNow().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// generateTOTPKey is a seam for tests.
var generateTOTPKey = func(issuer, accountName string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
	})
}

// TOTPSetup is returned by InitSetup: the shared secret for manual entry and
// the otpauth:// provisioning URL an authenticator app can consume.
type TOTPSetup struct {
	Secret string
	URL    string
}

// TwoFactorService drives the per-user TOTP state machine:
// Disabled -> PendingSetup -> Enabled -> Disabled. All transitions run in a
// transaction with the user row locked, so concurrent setup attempts cannot
// interleave into inconsistent secret state.
type TwoFactorService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      string
}

// NewTwoFactorService constructs a TwoFactorService.
func NewTwoFactorService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TwoFactorService {
	return &TwoFactorService{db: db, repomanager: m, issuer: cfg.TOTPIssuer}
}

// InitSetup generates a fresh shared secret and stores it unconfirmed.
// Calling it again while a setup is pending overwrites the previous secret.
// Fails with ErrTOTPAlreadyEnabled once the second factor is active.
func (s *TwoFactorService) InitSetup(ctx context.Context, userID string) (*TOTPSetup, error) {
	var setup *TOTPSetup

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.TOTPEnabled {
			return common.ErrTOTPAlreadyEnabled
		}

		key, err := generateTOTPKey(s.issuer, user.Email)
		if err != nil {
			return common.ErrInternal
		}
		if err := repo.SetPendingTOTPSecret(ctx, userID, key.Secret()); err != nil {
			return err
		}

		setup = &TOTPSetup{Secret: key.Secret(), URL: key.URL()}
		return nil
	})
	if err != nil {
		return nil, businessOrInternal(err)
	}
	return setup, nil
}

// ConfirmSetup verifies a code against the pending secret and, on match,
// enables the second factor. On mismatch the secret is retained so the user
// may retry.
func (s *TwoFactorService) ConfirmSetup(ctx context.Context, userID, code string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if user.TOTPEnabled {
			return common.ErrTOTPAlreadyEnabled
		}
		if user.TOTPSecret == "" {
			return common.ErrTOTPNotPending
		}
		if !validateTOTP(code, user.TOTPSecret) {
			return common.ErrInvalidCode
		}

		return repo.EnableTOTP(ctx, userID)
	})
	return businessOrInternal(err)
}

// Disable turns the second factor off. It requires a valid current code and
// clears the stored secret.
func (s *TwoFactorService) Disable(ctx context.Context, userID, code string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByIDForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		if !user.TOTPEnabled {
			return common.ErrTOTPNotEnabled
		}
		if !validateTOTP(code, user.TOTPSecret) {
			return common.ErrInvalidCode
		}

		return repo.DisableTOTP(ctx, userID)
	})
	return businessOrInternal(err)
}

// Status reports the current state of the user's second factor.
func (s *TwoFactorService) Status(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, businessOrInternal(err)
	}
	return user, nil
}

// businessOrInternal passes through the error taxonomy and collapses
// everything else (driver failures, rollbacks) into ErrInternal so callers
// can tell "not permitted" from "system malfunction".
func businessOrInternal(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		common.ErrNotFound,
		common.ErrTOTPAlreadyEnabled,
		common.ErrTOTPNotPending,
		common.ErrTOTPNotEnabled,
		common.ErrInvalidCode,
		common.ErrInvalidCredentials,
		common.ErrSelfShare,
		common.ErrRecipientNotFound,
		common.ErrUnauthenticated,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	if errors.Is(err, &common.LockedError{}) || errors.Is(err, &common.ForbiddenError{}) {
		return err
	}
	return common.ErrInternal
}
