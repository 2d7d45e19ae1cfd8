package ports

import (
	"context"
	"time"
)

// NonceCache is an ephemeral key-value store with expiry
type NonceCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error

	// Take runs check against the stored value and deletes the key only if
	// check returns nil. Lookup, check and delete happen as one atomic step;
	// the check error is returned unchanged. A missing key is ErrCacheMiss.
	Take(ctx context.Context, key string, check func(value string) error) error
}
