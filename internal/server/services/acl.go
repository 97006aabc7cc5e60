package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/repositories/repomanager"
)

// PermissionSet is the triple of rights carried by one share.
type PermissionSet struct {
	CanView   bool
	CanEdit   bool
	CanDelete bool
}

// ACLService owns the sharing relation: it grants, revokes, lists, and
// enforces per-user permissions on files.
type ACLService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
}

// NewACLService constructs an ACLService.
func NewACLService(db *sql.DB, m repomanager.RepositoryManager) *ACLService {
	return &ACLService{db: db, repomanager: m}
}

// Grant upserts a share of fileID to the user with granteeEmail. Only the
// owner may grant; granting to yourself or to an unknown email fails.
// Re-granting to the same user replaces the permission triple instead of
// adding a row. Returns the refreshed share list for the file.
func (s *ACLService) Grant(ctx context.Context, fileID, ownerID, granteeEmail string, perms PermissionSet) ([]*models.Share, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, businessOrInternal(err)
	}
	// Ownership is not a grantable permission: a sharee cannot re-share.
	// An existing file owned by someone else looks like a missing file.
	if file.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}

	grantee, err := s.repomanager.Users(s.db).GetByEmail(ctx, granteeEmail)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrRecipientNotFound
		}
		return nil, common.ErrInternal
	}
	if grantee.ID == ownerID {
		return nil, common.ErrSelfShare
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		share := &models.Share{
			FileID:    fileID,
			UserID:    grantee.ID,
			CanView:   perms.CanView,
			CanEdit:   perms.CanEdit,
			CanDelete: perms.CanDelete,
		}
		if err := s.repomanager.Shares(tx).Upsert(ctx, share); err != nil {
			return err
		}
		return s.repomanager.Files(tx).SetShared(ctx, fileID, true)
	})
	if err != nil {
		return nil, common.ErrInternal
	}

	return s.repomanager.Shares(s.db).ListByFile(ctx, fileID)
}

// Revoke deletes the (file, target) share. The owner may revoke any share;
// a non-owner may only revoke their own (leave the share). The file's shared
// flag is recomputed from the committed post-deletion count.
func (s *ACLService) Revoke(ctx context.Context, fileID, requesterID, targetUserID string) ([]*models.Share, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, businessOrInternal(err)
	}

	if file.OwnerID != requesterID && requesterID != targetUserID {
		return nil, &common.ForbiddenError{Permission: "revoke"}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		sharesRepo := s.repomanager.Shares(tx)

		if err := sharesRepo.Delete(ctx, fileID, targetUserID); err != nil {
			return err
		}

		remaining, err := sharesRepo.CountByFile(ctx, fileID)
		if err != nil {
			return err
		}
		return s.repomanager.Files(tx).SetShared(ctx, fileID, remaining > 0)
	})
	if err != nil {
		return nil, businessOrInternal(err)
	}

	return s.repomanager.Shares(s.db).ListByFile(ctx, fileID)
}

// ListShares returns the shares on a file. Only the owner may list them.
func (s *ACLService) ListShares(ctx context.Context, fileID, ownerID string) ([]*models.Share, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, businessOrInternal(err)
	}
	if file.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}

	return s.repomanager.Shares(s.db).ListByFile(ctx, fileID)
}

// Check decides whether userID holds perm on fileID.
func (s *ACLService) Check(ctx context.Context, fileID, userID string, perm models.Permission) (bool, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return false, businessOrInternal(err)
	}
	return s.CheckFile(ctx, file, userID, perm)
}

// CheckFile is Check for an already-loaded file. The owner implicitly holds
// every permission without a share row; anyone else needs the matching bit
// on their share.
func (s *ACLService) CheckFile(ctx context.Context, file *models.File, userID string, perm models.Permission) (bool, error) {
	if !perm.Valid() {
		return false, nil
	}
	if file.OwnerID == userID {
		return true, nil
	}

	share, err := s.repomanager.Shares(s.db).Get(ctx, file.ID, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, common.ErrInternal
	}
	return share.Allows(perm), nil
}
