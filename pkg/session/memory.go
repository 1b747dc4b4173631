package session

import (
	"context"
	"fmt"
	"time"

	"github.com/EagleChen/mapmutex"
	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded state in an expiring in-process cache. Suitable
// for single instance deployments and tests.
type MemoryStore struct {
	cache *cache.Cache
	locks *mapmutex.Mutex
	ttl   time.Duration
}

var _ Store = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryTTL sets how long idle state is kept.
func WithMemoryTTL(ttl time.Duration) MemoryOption {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	store := &MemoryStore{ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	store.cache = cache.New(store.ttl, store.ttl/2)
	// maxRetry 64, maxDelay 50ms, baseDelay 10ns
	store.locks = mapmutex.NewCustomizedMapMutex(64, float64(50*time.Millisecond), 10, 1.1, 0.2)
	return store
}

// Lock implements Store.
func (s *MemoryStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	for {
		if s.locks.TryLock(sessionID) {
			return onceFunc(func() { s.locks.Unlock(sessionID) }), nil
		}
		if err := waitRetry(ctx); err != nil {
			return nil, err
		}
	}
}

// Load implements Store.
func (s *MemoryStore) Load(_ context.Context, sessionID, formKey string) (*FormState, error) {
	if err := validateIDs(sessionID, formKey); err != nil {
		return nil, err
	}
	raw, ok := s.cache.Get(stateKey("", sessionID, formKey))
	if !ok {
		return NewFormState(), nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("session: unexpected cache entry %T", raw)
	}
	return Unmarshal(data)
}

// Save implements Store. Empty state removes the entry.
func (s *MemoryStore) Save(ctx context.Context, sessionID, formKey string, state *FormState) error {
	if err := validateIDs(sessionID, formKey); err != nil {
		return err
	}
	if state.IsEmpty() {
		return s.Delete(ctx, sessionID, formKey)
	}
	data, err := Marshal(state)
	if err != nil {
		return err
	}
	s.cache.Set(stateKey("", sessionID, formKey), data, cache.DefaultExpiration)
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, sessionID, formKey string) error {
	if err := validateIDs(sessionID, formKey); err != nil {
		return err
	}
	s.cache.Delete(stateKey("", sessionID, formKey))
	return nil
}
