package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/logging"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FileService handles uploads, listings, downloads, and deletion of files.
// Bytes live in object storage; metadata lives in the files table.
type FileService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStorage
	logger      logging.Logger
}

// NewFileService constructs a FileService.
func NewFileService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStorage, l logging.Logger) *FileService {
	return &FileService{db: db, repomanager: m, store: store, logger: l.With("module", "files")}
}

// Upload stores the bytes first, then inserts the metadata row. If the
// insert fails the stored object is removed so no orphan bytes remain.
func (s *FileService) Upload(ctx context.Context, ownerID, name, contentType string, data []byte) (*models.File, error) {
	key, size, err := s.store.Store(ctx, data, name)
	if err != nil {
		s.logger.Error(ctx, "failed to store uploaded bytes", "name", name, "error", err)
		return nil, common.ErrInternal
	}

	file := &models.File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		StorageKey:  key,
		ContentType: contentType,
		Size:        size,
	}
	if _, err := s.repomanager.Files(s.db).Create(ctx, file); err != nil {
		if rmErr := s.store.Remove(ctx, key); rmErr != nil {
			s.logger.Warn(ctx, "failed to remove orphaned object", "key", key, "error", rmErr)
		}
		return nil, common.ErrInternal
	}
	return file, nil
}

// ListForUser returns the user's own files and the files shared to them
// with view permission.
func (s *FileService) ListForUser(ctx context.Context, userID string) (own, shared []*models.File, err error) {
	repo := s.repomanager.Files(s.db)

	own, err = repo.ListByOwner(ctx, userID)
	if err != nil {
		return nil, nil, common.ErrInternal
	}
	shared, err = repo.ListSharedWith(ctx, userID)
	if err != nil {
		return nil, nil, common.ErrInternal
	}
	return own, shared, nil
}

// Get returns a file's metadata.
func (s *FileService) Get(ctx context.Context, fileID string) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, businessOrInternal(err)
	}
	return file, nil
}

// DownloadURL returns a short-lived presigned URL for the file's bytes.
func (s *FileService) DownloadURL(ctx context.Context, file *models.File) (string, error) {
	exists, err := s.store.Exists(ctx, file.StorageKey)
	if err != nil {
		return "", common.ErrInternal
	}
	if !exists {
		return "", common.ErrNotFound
	}
	url, err := s.store.PresignGet(ctx, file.StorageKey)
	if err != nil {
		return "", common.ErrInternal
	}
	return url, nil
}

// Delete removes the metadata row (shares cascade) and then the stored
// bytes. Removal of the bytes is reported but does not undo the delete.
func (s *FileService) Delete(ctx context.Context, file *models.File) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repomanager.Files(tx).Delete(ctx, file.ID)
	})
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrNotFound
		}
		return common.ErrInternal
	}

	if err := s.store.Remove(ctx, file.StorageKey); err != nil {
		s.logger.Warn(ctx, "failed to remove stored object", "key", file.StorageKey, "error", err)
	}
	return nil
}
