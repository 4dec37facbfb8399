package tokens

import (
	"context"
	"time"
)

// Repo is the ephemeral key-value storage credentials are written to.
// Get returns errors.ErrNotFound for missing or expired keys.
type Repo interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}
