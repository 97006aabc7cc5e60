package models

// Permission enumerates the access rights grantable on a file.
type Permission string

const (
	PermissionView   Permission = "view"
	PermissionEdit   Permission = "edit"
	PermissionDelete Permission = "delete"
)

// Valid reports whether p is one of the known permissions.
func (p Permission) Valid() bool {
	switch p {
	case PermissionView, PermissionEdit, PermissionDelete:
		return true
	}
	return false
}

func (p Permission) String() string { return string(p) }
