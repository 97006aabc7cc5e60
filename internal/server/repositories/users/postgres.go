// Package users provides the PostgreSQL-backed repository for user identity
// and credential state.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const userColumns = `id, email, display_name, password_hash, role, status,
		failed_login_attempts, lockout_until, totp_enabled, totp_secret,
		created_at, updated_at`

func scanUser(row *sql.Row) (*models.User, error) {
	user := &models.User{}
	var lockoutUntil sql.NullTime
	var totpSecret sql.NullString

	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash,
		&user.Role, &user.Status, &user.FailedLoginAttempts, &lockoutUntil,
		&user.TOTPEnabled, &totpSecret, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		user.LockoutUntil = &t
	}
	user.TOTPSecret = totpSecret.String

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `INSERT INTO users (id, email, display_name, password_hash, role)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Email, user.DisplayName, user.PasswordHash, user.Role).Scan(&user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) GetByDisplayName(ctx context.Context, displayName string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE display_name = $1`
	return scanUser(r.db.QueryRowContext(ctx, query, displayName))
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 FOR UPDATE`
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// RecordLoginFailure increments the counter and arms the lockout in a single
// statement so two concurrent failed logins cannot both observe the same
// counter value. When the incremented counter reaches maxAttempts, it resets
// to zero and lockout_until is set to now + lockoutFor.
func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutFor time.Duration) (int, *time.Time, error) {
	query := `UPDATE users SET
			failed_login_attempts = CASE WHEN failed_login_attempts + 1 >= $2
				THEN 0 ELSE failed_login_attempts + 1 END,
			lockout_until = CASE WHEN failed_login_attempts + 1 >= $2
				THEN now() + make_interval(secs => $3) ELSE lockout_until END,
			updated_at = now()
		 WHERE id = $1
		 RETURNING failed_login_attempts, lockout_until
		 `

	var attempts int
	var lockoutUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id, maxAttempts, lockoutFor.Seconds()).
		Scan(&attempts, &lockoutUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, common.ErrNotFound
		}
		return 0, nil, fmt.Errorf("db error: %w", err)
	}

	if lockoutUntil.Valid {
		t := lockoutUntil.Time
		return attempts, &t, nil
	}
	return attempts, nil, nil
}

func (r *PostgresRepository) ResetLoginState(ctx context.Context, id string) error {
	query := `UPDATE users SET failed_login_attempts = 0, lockout_until = NULL, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) SetPendingTOTPSecret(ctx context.Context, id, secret string) error {
	query := `UPDATE users SET totp_secret = $2, totp_enabled = false, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id, secret)
}

func (r *PostgresRepository) EnableTOTP(ctx context.Context, id string) error {
	query := `UPDATE users SET totp_enabled = true, updated_at = now()
		 WHERE id = $1 AND totp_secret IS NOT NULL
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) DisableTOTP(ctx context.Context, id string) error {
	query := `UPDATE users SET totp_enabled = false, totp_secret = NULL, updated_at = now()
		 WHERE id = $1
		 `
	return r.exec(ctx, query, id)
}

func (r *PostgresRepository) List(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, email, display_name, role, status, created_at FROM users ORDER BY created_at`
	return r.queryUsers(ctx, query)
}

// Search matches email or display name case-insensitively on a substring.
func (r *PostgresRepository) Search(ctx context.Context, q string) ([]*models.User, error) {
	query := `SELECT id, email, display_name, role, status, created_at FROM users
		 WHERE email ILIKE '%' || $1 || '%' OR display_name ILIKE '%' || $1 || '%'
		 ORDER BY created_at
		 `
	return r.queryUsers(ctx, query, q)
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	query := `DELETE FROM users WHERE email = $1`
	res, err := r.db.ExecContext(ctx, query, email)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) queryUsers(ctx context.Context, query string, args ...any) ([]*models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.Status, &u.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
