package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aelouarti/partage/internal/common"
)

type errorResponse struct {
	Message string `json:"message"`
}

// writeError translates the service error taxonomy into HTTP statuses.
// Business-rule failures keep their message; anything unrecognized is
// reported as a generic malfunction so internals do not leak.
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var locked *common.LockedError
	if errors.As(err, &locked) {
		w.Header().Set("Retry-After", strconv.FormatInt(locked.RetryAfter, 10))
		writeJSON(w, http.StatusLocked, errorResponse{Message: locked.Error()})
		return
	}

	var forbidden *common.ForbiddenError
	if errors.As(err, &forbidden) {
		writeJSON(w, http.StatusForbidden, errorResponse{Message: forbidden.Error()})
		return
	}

	var status int
	switch {
	case errors.Is(err, common.ErrUnauthenticated),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrInvalidCode):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrEmailTaken),
		errors.Is(err, common.ErrDisplayNameTaken),
		errors.Is(err, common.ErrTOTPAlreadyEnabled),
		errors.Is(err, common.ErrTOTPNotPending),
		errors.Is(err, common.ErrTOTPNotEnabled):
		status = http.StatusConflict
	case errors.Is(err, common.ErrInvalidEmail),
		errors.Is(err, common.ErrSelfShare),
		errors.Is(err, common.ErrRecipientNotFound):
		status = http.StatusBadRequest
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
		return
	}

	writeJSON(w, status, errorResponse{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
