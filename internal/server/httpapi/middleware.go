package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/aelouarti/partage/internal/common"
	"github.com/aelouarti/partage/internal/server/models"
)

type ctxKey string

const userKey ctxKey = "user"

// requireAuth resolves the bearer session token and stores the
// authenticated user in the request context. Requests with a missing,
// malformed, expired, or forged token are rejected before the handler runs.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AuthorizationHeaderName)
		if !strings.HasPrefix(header, common.BearerPrefix) {
			s.writeError(r.Context(), w, common.ErrUnauthenticated)
			return
		}
		token := strings.TrimPrefix(header, common.BearerPrefix)

		user, err := s.access.ResolveUser(r.Context(), token)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userKey, user)
		next(w, r.WithContext(ctx))
	}
}

// userFromContext returns the user stored by requireAuth.
func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userKey).(*models.User)
	return user
}

// requireFileAccess runs the access gate for the file named by the {id}
// path segment and the given permission, then hands the authorized file to
// the handler. Every file-scoped route goes through here; none bypasses
// the gate.
func (s *Server) requireFileAccess(perm models.Permission, next func(w http.ResponseWriter, r *http.Request, file *models.File)) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		user := userFromContext(r.Context())

		file, err := s.access.AuthorizeUser(r.Context(), user, r.PathValue("id"), perm)
		if err != nil {
			s.writeError(r.Context(), w, err)
			return
		}
		next(w, r, file)
	})
}
