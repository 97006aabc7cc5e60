package services

import "context"

// ObjectStorage is the slice of the storage collaborator the services
// consume: opaque byte storage with de-duplicated keys.
type ObjectStorage interface {
	// Store persists data under a key derived from suggestedName plus a
	// random suffix, and returns the key and stored size.
	Store(ctx context.Context, data []byte, suggestedName string) (key string, size int64, err error)

	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// PresignGet returns a short-lived download URL for the object.
	PresignGet(ctx context.Context, key string) (string, error)
}
