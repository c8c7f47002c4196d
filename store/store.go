package store

import (
	"context"
)

// Store is the document persistence contract for the moderation core:
// collection-scoped key/value documents, no transactions assumed across
// collections. A missing document is reported with the bool return, not an
// error.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, bool, error)
	Put(ctx context.Context, collection, key string, val []byte) error
	Delete(ctx context.Context, collection, key string) error
}
