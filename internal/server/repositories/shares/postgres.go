// Package shares provides the PostgreSQL-backed repository for the ACL
// relation between files and users.
package shares

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Upsert rides the (file_id, user_id) primary key: a concurrent duplicate
// grant lands on the conflict arm instead of producing a second row.
func (r *PostgresRepository) Upsert(ctx context.Context, share *models.Share) error {
	query := `INSERT INTO file_shares (file_id, user_id, can_view, can_edit, can_delete)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (file_id, user_id)
		 DO UPDATE SET can_view = EXCLUDED.can_view,
			can_edit = EXCLUDED.can_edit,
			can_delete = EXCLUDED.can_delete
		 `

	if _, err := r.db.ExecContext(ctx, query,
		share.FileID, share.UserID, share.CanView, share.CanEdit, share.CanDelete); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, fileID, userID string) (*models.Share, error) {
	query := `SELECT file_id, user_id, can_view, can_edit, can_delete, created_at
		 FROM file_shares
		 WHERE file_id = $1 AND user_id = $2
		 `

	share := &models.Share{}
	err := r.db.QueryRowContext(ctx, query, fileID, userID).Scan(&share.FileID,
		&share.UserID, &share.CanView, &share.CanEdit, &share.CanDelete, &share.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return share, nil
}

func (r *PostgresRepository) ListByFile(ctx context.Context, fileID string) ([]*models.Share, error) {
	query := `SELECT s.file_id, s.user_id, u.email, s.can_view, s.can_edit, s.can_delete, s.created_at
		 FROM file_shares s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.file_id = $1
		 ORDER BY s.created_at
		 `

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Share
	for rows.Next() {
		var s models.Share
		if err := rows.Scan(&s.FileID, &s.UserID, &s.UserEmail,
			&s.CanView, &s.CanEdit, &s.CanDelete, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, fileID, userID string) error {
	query := `DELETE FROM file_shares WHERE file_id = $1 AND user_id = $2`

	res, err := r.db.ExecContext(ctx, query, fileID, userID)
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

func (r *PostgresRepository) CountByFile(ctx context.Context, fileID string) (int, error) {
	query := `SELECT count(*) FROM file_shares WHERE file_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, fileID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}
