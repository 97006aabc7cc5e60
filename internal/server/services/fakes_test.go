package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/dbx"
	"github.com/aelouarti/partage/internal/logging"
	"github.com/aelouarti/partage/internal/server/config"
	"github.com/aelouarti/partage/internal/server/models"
	filesrepo "github.com/aelouarti/partage/internal/server/repositories/files"
	sharesrepo "github.com/aelouarti/partage/internal/server/repositories/shares"
	usersrepo "github.com/aelouarti/partage/internal/server/repositories/users"
	"log/slog"
	"os"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SecretKey = "k"
	return cfg
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

// --- in-memory repositories ---

// memUsersRepo mirrors the PostgreSQL repository's semantics in memory,
// including the single-shot counter/lockout update.
type memUsersRepo struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func newMemUsersRepo(users ...*models.User) *memUsersRepo {
	r := &memUsersRepo{byID: map[string]*models.User{}}
	for _, u := range users {
		copied := *u
		r.byID[u.ID] = &copied
	}
	return r
}

func (r *memUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *user
	copied.CreatedAt = timeNow()
	r.byID[user.ID] = &copied
	return &copied, nil
}

func (r *memUsersRepo) get(match func(*models.User) bool) (*models.User, error) {
	for _, u := range r.byID {
		if match(u) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *memUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(func(u *models.User) bool { return u.ID == id })
}

func (r *memUsersRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(func(u *models.User) bool { return u.Email == email })
}

func (r *memUsersRepo) GetByDisplayName(ctx context.Context, name string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(func(u *models.User) bool { return u.DisplayName == name })
}

func (r *memUsersRepo) GetByIDForUpdate(ctx context.Context, id string) (*models.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memUsersRepo) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutFor time.Duration) (int, *time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return 0, nil, common.ErrNotFound
	}
	if u.FailedLoginAttempts+1 >= maxAttempts {
		u.FailedLoginAttempts = 0
		deadline := timeNow().Add(lockoutFor)
		u.LockoutUntil = &deadline
	} else {
		u.FailedLoginAttempts++
	}
	if u.LockoutUntil == nil {
		return u.FailedLoginAttempts, nil, nil
	}
	deadline := *u.LockoutUntil
	return u.FailedLoginAttempts, &deadline, nil
}

func (r *memUsersRepo) ResetLoginState(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	return nil
}

func (r *memUsersRepo) SetPendingTOTPSecret(ctx context.Context, id, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.TOTPSecret = secret
	u.TOTPEnabled = false
	return nil
}

func (r *memUsersRepo) EnableTOTP(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok || u.TOTPSecret == "" {
		return common.ErrNotFound
	}
	u.TOTPEnabled = true
	return nil
}

func (r *memUsersRepo) DisableTOTP(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.TOTPEnabled = false
	u.TOTPSecret = ""
	return nil
}

func (r *memUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.User
	for _, u := range r.byID {
		copied := *u
		result = append(result, &copied)
	}
	return result, nil
}

func (r *memUsersRepo) Search(ctx context.Context, query string) ([]*models.User, error) {
	return r.List(ctx)
}

func (r *memUsersRepo) DeleteByEmail(ctx context.Context, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.byID {
		if u.Email == email {
			delete(r.byID, id)
			return nil
		}
	}
	return common.ErrNotFound
}

// memFilesRepo keeps file metadata in memory.
type memFilesRepo struct {
	mu     sync.Mutex
	byID   map[string]*models.File
	shares *memSharesRepo
}

func newMemFilesRepo(shares *memSharesRepo, files ...*models.File) *memFilesRepo {
	r := &memFilesRepo{byID: map[string]*models.File{}, shares: shares}
	for _, f := range files {
		copied := *f
		r.byID[f.ID] = &copied
	}
	return r
}

func (r *memFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *file
	copied.CreatedAt = timeNow()
	r.byID[file.ID] = &copied
	return &copied, nil
}

func (r *memFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *f
	return &copied, nil
}

func (r *memFilesRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.File
	for _, f := range r.byID {
		if f.OwnerID == ownerID {
			copied := *f
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memFilesRepo) ListSharedWith(ctx context.Context, userID string) ([]*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.File
	for _, f := range r.byID {
		if s, err := r.shares.Get(ctx, f.ID, userID); err == nil && s.CanView {
			copied := *f
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memFilesRepo) StorageKeysByOwner(ctx context.Context, ownerID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []string
	for _, f := range r.byID {
		if f.OwnerID == ownerID {
			keys = append(keys, f.StorageKey)
		}
	}
	return keys, nil
}

func (r *memFilesRepo) SetShared(ctx context.Context, id string, shared bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	f.Shared = shared
	return nil
}

func (r *memFilesRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// memSharesRepo keys shares by (file, user), matching the unique constraint.
type memSharesRepo struct {
	mu   sync.Mutex
	rows map[[2]string]*models.Share
}

func newMemSharesRepo() *memSharesRepo {
	return &memSharesRepo{rows: map[[2]string]*models.Share{}}
}

func (r *memSharesRepo) Upsert(ctx context.Context, share *models.Share) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *share
	if existing, ok := r.rows[[2]string{share.FileID, share.UserID}]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else {
		copied.CreatedAt = timeNow()
	}
	r.rows[[2]string{share.FileID, share.UserID}] = &copied
	return nil
}

func (r *memSharesRepo) Get(ctx context.Context, fileID, userID string) (*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[[2]string{fileID, userID}]
	if !ok {
		return nil, common.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *memSharesRepo) ListByFile(ctx context.Context, fileID string) ([]*models.Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []*models.Share
	for _, s := range r.rows {
		if s.FileID == fileID {
			copied := *s
			result = append(result, &copied)
		}
	}
	return result, nil
}

func (r *memSharesRepo) Delete(ctx context.Context, fileID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[[2]string{fileID, userID}]; !ok {
		return common.ErrNotFound
	}
	delete(r.rows, [2]string{fileID, userID})
	return nil
}

func (r *memSharesRepo) CountByFile(ctx context.Context, fileID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.rows {
		if s.FileID == fileID {
			count++
		}
	}
	return count, nil
}

// memRepoManager hands out the in-memory repositories regardless of the
// DBTX it is given, so service code can run WithTx against a sqlmock DB.
type memRepoManager struct {
	users  *memUsersRepo
	files  *memFilesRepo
	shares *memSharesRepo
}

func newMemRepoManager() *memRepoManager {
	shares := newMemSharesRepo()
	return &memRepoManager{
		users:  newMemUsersRepo(),
		files:  newMemFilesRepo(shares),
		shares: shares,
	}
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.users }
func (m *memRepoManager) Files(db dbx.DBTX) filesrepo.Repository       { return m.files }
func (m *memRepoManager) Shares(db dbx.DBTX) sharesrepo.Repository     { return m.shares }

// fakeStorage records stored objects in memory.
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (s *fakeStorage) Store(ctx context.Context, data []byte, suggestedName string) (string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := "users/test/" + suggestedName
	s.objects[key] = data
	return key, int64(len(data)), nil
}

func (s *fakeStorage) Remove(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	s.removed = append(s.removed, key)
	return nil
}

func (s *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *fakeStorage) PresignGet(ctx context.Context, key string) (string, error) {
	return "https://example.test/" + key, nil
}
