// Package files provides the PostgreSQL-backed repository for file metadata.
package files

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

const fileColumns = `id, owner_id, name, storage_key, content_type, size, is_shared, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	query := `INSERT INTO files (id, owner_id, name, storage_key, content_type, size)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		file.ID, file.OwnerID, file.Name, file.StorageKey, file.ContentType, file.Size).
		Scan(&file.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file := &models.File{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&file.ID, &file.OwnerID,
		&file.Name, &file.StorageKey, &file.ContentType, &file.Size, &file.Shared,
		&file.CreatedAt, &file.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return file, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE owner_id = $1 ORDER BY created_at`
	return r.queryFiles(ctx, query, ownerID)
}

func (r *PostgresRepository) ListSharedWith(ctx context.Context, userID string) ([]*models.File, error) {
	query := `SELECT f.id, f.owner_id, f.name, f.storage_key, f.content_type, f.size, f.is_shared, f.created_at, f.updated_at
		 FROM files f
		 JOIN file_shares s ON s.file_id = f.id
		 WHERE s.user_id = $1 AND s.can_view
		 ORDER BY f.created_at
		 `
	return r.queryFiles(ctx, query, userID)
}

func (r *PostgresRepository) StorageKeysByOwner(ctx context.Context, ownerID string) ([]string, error) {
	query := `SELECT storage_key FROM files WHERE owner_id = $1`

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *PostgresRepository) SetShared(ctx context.Context, id string, shared bool) error {
	query := `UPDATE files SET is_shared = $2, updated_at = now() WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, shared)
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

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM files WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
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

func (r *PostgresRepository) queryFiles(ctx context.Context, query string, args ...any) ([]*models.File, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.File
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Name, &f.StorageKey,
			&f.ContentType, &f.Size, &f.Shared, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
