package httpapi

import (
	"time"

	"github.com/aelouarti/partage/internal/server/models"
)

type userDTO struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserDTO(u *models.User) userDTO {
	return userDTO{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.DisplayName,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
	}
}

func toUserDTOs(users []*models.User) []userDTO {
	result := make([]userDTO, 0, len(users))
	for _, u := range users {
		result = append(result, toUserDTO(u))
	}
	return result
}

type fileDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Size      int64     `json:"size"`
	OwnerID   string    `json:"ownerId"`
	IsShared  bool      `json:"isShared"`
	CreatedAt time.Time `json:"createdAt"`
}

func toFileDTO(f *models.File) fileDTO {
	return fileDTO{
		ID:        f.ID,
		Name:      f.Name,
		Type:      f.ContentType,
		Size:      f.Size,
		OwnerID:   f.OwnerID,
		IsShared:  f.Shared,
		CreatedAt: f.CreatedAt,
	}
}

func toFileDTOs(files []*models.File) []fileDTO {
	result := make([]fileDTO, 0, len(files))
	for _, f := range files {
		result = append(result, toFileDTO(f))
	}
	return result
}

type shareDTO struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	CanView   bool   `json:"canView"`
	CanEdit   bool   `json:"canEdit"`
	CanDelete bool   `json:"canDelete"`
}

func toShareDTOs(shares []*models.Share) []shareDTO {
	result := make([]shareDTO, 0, len(shares))
	for _, s := range shares {
		result = append(result, shareDTO{
			UserID:    s.UserID,
			Email:     s.UserEmail,
			CanView:   s.CanView,
			CanEdit:   s.CanEdit,
			CanDelete: s.CanDelete,
		})
	}
	return result
}
