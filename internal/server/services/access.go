package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/server/auth"
	"github.com/aelouarti/partage/internal/server/config"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/repositories/repomanager"
)

// AccessService is the authorization checkpoint crossed before every
// file-scoped operation: session token to user, file lookup, then the ACL
// decision. No file operation bypasses it.
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	acl         *ACLService
	jwtSecret   []byte
}

// NewAccessService constructs an AccessService on top of the ACL engine.
func NewAccessService(db *sql.DB, m repomanager.RepositoryManager, acl *ACLService, cfg *config.Config) *AccessService {
	return &AccessService{db: db, repomanager: m, acl: acl, jwtSecret: []byte(cfg.SecretKey)}
}

// ResolveUser maps a session token to its user. Malformed, forged, expired
// tokens, and tokens for deleted accounts all yield ErrUnauthenticated.
func (s *AccessService) ResolveUser(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.ResolveToken(token, s.jwtSecret)
	if err != nil {
		return nil, common.ErrUnauthenticated
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrUnauthenticated
		}
		return nil, common.ErrInternal
	}
	return user, nil
}

// Authorize resolves the session token, loads the file, and checks the
// requested permission. On denial the returned ForbiddenError names the
// missing permission.
func (s *AccessService) Authorize(ctx context.Context, token, fileID string, perm models.Permission) (*models.User, *models.File, error) {
	user, err := s.ResolveUser(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	return s.authorizeUser(ctx, user, fileID, perm)
}

// AuthorizeUser is Authorize for an already-resolved user, used by handlers
// running behind the authentication middleware.
func (s *AccessService) AuthorizeUser(ctx context.Context, user *models.User, fileID string, perm models.Permission) (*models.File, error) {
	_, file, err := s.authorizeUser(ctx, user, fileID, perm)
	return file, err
}

func (s *AccessService) authorizeUser(ctx context.Context, user *models.User, fileID string, perm models.Permission) (*models.User, *models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, businessOrInternal(err)
	}

	allowed, err := s.acl.CheckFile(ctx, file, user.ID, perm)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		return nil, nil, &common.ForbiddenError{Permission: perm.String()}
	}
	return user, file, nil
}
