package models

import "time"

// File describes an uploaded file owned by exactly one user. The bytes live
// in object storage under StorageKey; Shared is derived and true iff at
// least one active share row exists.
type File struct {
	ID          string
	OwnerID     string
	Name        string
	StorageKey  string
	ContentType string
	Size        int64
	Shared      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
