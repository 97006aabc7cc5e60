package models

import "time"

// Share grants a permission triple on one file to one non-owner user.
// At most one share exists per (file, user) pair; re-granting replaces the
// triple instead of adding a row.
type Share struct {
	FileID    string
	UserID    string
	UserEmail string

	CanView   bool
	CanEdit   bool
	CanDelete bool

	CreatedAt time.Time
}

// Allows reports whether the share carries the requested permission.
// Unknown permissions are denied.
func (s *Share) Allows(p Permission) bool {
	switch p {
	case PermissionView:
		return s.CanView
	case PermissionEdit:
		return s.CanEdit
	case PermissionDelete:
		return s.CanDelete
	default:
		return false
	}
}
