package tokens

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrsteele09/go-qr-login/internal/errors"
)

var _ Repo = (*InMemoryRepo)(nil)

type entry struct {
	value     string
	expiresAt time.Time
}

// InMemoryRepo is a thread-safe, process-local Repo
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]entry
	nowFunc func() time.Time
}

// NewInMemoryRepo creates a new in-memory token repository
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]entry),
		nowFunc: NowTimeFunc,
	}
}

// Set stores value under key until ttl elapses
func (r *InMemoryRepo) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry{value: value, expiresAt: r.nowFunc().Add(ttl)}
	return nil
}

// Get retrieves an unexpired value
func (r *InMemoryRepo) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[key]
	if !ok || !r.nowFunc().Before(e.expiresAt) {
		return "", errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	return e.value, nil
}

// Delete removes key, it is not an error if it doesn't exist
func (r *InMemoryRepo) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}
