// Package httpapi exposes the thin JSON API over the core services. Every
// file-scoped route crosses the access gate before its handler runs.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aelouarti/partage/internal/logging"
	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/services"
)

type Server struct {
	address   string
	logger    logging.Logger
	users     *services.UserService
	twofactor *services.TwoFactorService
	acl       *services.ACLService
	access    *services.AccessService
	files     *services.FileService
}

func NewServer(addr string, l logging.Logger,
	us *services.UserService, tf *services.TwoFactorService,
	acl *services.ACLService, access *services.AccessService,
	fs *services.FileService) *Server {
	return &Server{
		address:   addr,
		logger:    l.With("module", "http_server"),
		users:     us,
		twofactor: tf,
		acl:       acl,
		access:    access,
		files:     fs,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/2fa/verify", s.handleVerifySecondFactor)
	mux.HandleFunc("POST /api/auth/2fa/setup/init", s.requireAuth(s.handleInitSecondFactor))
	mux.HandleFunc("POST /api/auth/2fa/setup/confirm", s.requireAuth(s.handleConfirmSecondFactor))
	mux.HandleFunc("POST /api/auth/2fa/disable", s.requireAuth(s.handleDisableSecondFactor))
	mux.HandleFunc("GET /api/auth/2fa/status", s.requireAuth(s.handleSecondFactorStatus))
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleCurrentUser))
	mux.HandleFunc("DELETE /api/auth/users", s.requireAuth(s.handleDeleteUser))

	mux.HandleFunc("GET /api/users", s.requireAuth(s.handleListUsers))
	mux.HandleFunc("GET /api/users/search", s.requireAuth(s.handleSearchUsers))

	mux.HandleFunc("GET /api/files", s.requireAuth(s.handleListFiles))
	mux.HandleFunc("POST /api/files", s.requireAuth(s.handleUploadFile))
	mux.HandleFunc("GET /api/files/{id}", s.requireFileAccess(models.PermissionView, s.handleGetFile))
	mux.HandleFunc("GET /api/files/{id}/download", s.requireFileAccess(models.PermissionView, s.handleDownloadFile))
	mux.HandleFunc("DELETE /api/files/{id}", s.requireFileAccess(models.PermissionDelete, s.handleDeleteFile))

	mux.HandleFunc("POST /api/files/{id}/share", s.requireAuth(s.handleGrantShare))
	mux.HandleFunc("DELETE /api/files/{id}/share/{userID}", s.requireAuth(s.handleRevokeShare))
	mux.HandleFunc("GET /api/files/{id}/shared-users", s.requireAuth(s.handleListShares))

	return mux
}

// Run serves the API until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
