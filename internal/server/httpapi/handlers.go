package httpapi

import (
	"io"
	"net/http"

	"github.com/aelouarti/partage/internal/server/models"
	"github.com/aelouarti/partage/internal/server/services"
)

// maxUploadSize caps a single upload at 16 MiB.
const maxUploadSize = 16 << 20

// --- auth ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "email and password are required"})
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserDTO(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "email and password are required"})
		return
	}

	result, err := s.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	if result.SecondFactorRequired {
		writeJSON(w, http.StatusOK, map[string]any{
			"twoFactorRequired": true,
			"userId":            result.UserID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": result.Token})
}

func (s *Server) handleVerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"userId"`
		Code   string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil || req.UserID == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "userId and code are required"})
		return
	}

	result, err := s.users.VerifySecondFactor(r.Context(), req.UserID, req.Code)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": result.Token})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserDTO(user)})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "email is required"})
		return
	}

	user := userFromContext(r.Context())
	if err := s.users.DeleteUser(r.Context(), user.ID, req.Email); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "user deleted"})
}

// --- two-factor ---

func (s *Server) handleInitSecondFactor(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	setup, err := s.twofactor.InitSetup(r.Context(), user.ID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"secret":          setup.Secret,
		"provisioningUrl": setup.URL,
	})
}

func (s *Server) handleConfirmSecondFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "code is required"})
		return
	}

	user := userFromContext(r.Context())
	if err := s.twofactor.ConfirmSetup(r.Context(), user.ID, req.Code); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "two-factor authentication enabled"})
}

func (s *Server) handleDisableSecondFactor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := readJSON(r, &req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "code is required"})
		return
	}

	user := userFromContext(r.Context())
	if err := s.twofactor.Disable(r.Context(), user.ID, req.Code); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "two-factor authentication disabled"})
}

func (s *Server) handleSecondFactorStatus(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	u, err := s.twofactor.Status(r.Context(), user.ID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enabled": u.TOTPEnabled})
}

// --- users ---

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.ListUsers(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	users, err := s.users.SearchUsers(r.Context(), user.ID, r.URL.Query().Get("query"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": toUserDTOs(users)})
}

// --- files ---

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	own, shared, err := s.files.ListForUser(r.Context(), user.ID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":       toFileDTOs(own),
		"sharedFiles": toFileDTOs(shared),
	})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid multipart payload"})
		return
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "no file provided"})
		return
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "could not read file"})
		return
	}

	user := userFromContext(r.Context())
	file, err := s.files.Upload(r.Context(), user.ID, header.Filename, header.Header.Get("Content-Type"), data)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileDTO(file))
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request, file *models.File) {
	writeJSON(w, http.StatusOK, toFileDTO(file))
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request, file *models.File) {
	url, err := s.files.DownloadURL(r.Context(), file)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"url": url, "name": file.Name})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request, file *models.File) {
	if err := s.files.Delete(r.Context(), file); err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "file deleted"})
}

// --- sharing ---

func (s *Server) handleGrantShare(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email     string `json:"email"`
		CanView   *bool  `json:"canView"`
		CanEdit   bool   `json:"canEdit"`
		CanDelete bool   `json:"canDelete"`
	}
	if err := readJSON(r, &req); err != nil || req.Email == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "recipient email is required"})
		return
	}

	// View defaults to granted when omitted.
	canView := true
	if req.CanView != nil {
		canView = *req.CanView
	}

	user := userFromContext(r.Context())
	shares, err := s.acl.Grant(r.Context(), r.PathValue("id"), user.ID, req.Email, services.PermissionSet{
		CanView:   canView,
		CanEdit:   req.CanEdit,
		CanDelete: req.CanDelete,
	})
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sharedUsers": toShareDTOs(shares)})
}

func (s *Server) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	shares, err := s.acl.Revoke(r.Context(), r.PathValue("id"), user.ID, r.PathValue("userID"))
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sharedUsers": toShareDTOs(shares)})
}

func (s *Server) handleListShares(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	shares, err := s.acl.ListShares(r.Context(), r.PathValue("id"), user.ID)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sharedUsers": toShareDTOs(shares)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}
