package cache

import (
	"context"
	"time"
)

// DefaultLifetime is how long a stored blob stays valid.
const DefaultLifetime = 2 * time.Hour

// Entry is a stored blob and the time it was written.
type Entry struct {
	Data    []byte
	ModTime time.Time
}

// BlobCache stores opaque serialized blobs keyed by name.
type BlobCache interface {
	// Get returns the entry for key. A missing or expired entry is reported
	// with ok == false and a nil error.
	Get(ctx context.Context, key string) (entry Entry, ok bool, err error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

func expired(mod time.Time, lifetime time.Duration, now time.Time) bool {
	return lifetime > 0 && now.Sub(mod) > lifetime
}
