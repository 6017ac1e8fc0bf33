// Package secret provides the encrypted key/value stores that hold session blobs.
package secret

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been stored or was deleted.
var ErrNotFound = errors.New("secret not found")

// Store is an opaque encrypted key/value store.
// Delete of a missing key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Store(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
