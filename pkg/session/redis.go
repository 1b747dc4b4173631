package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisStore is a Redis-backed store for multi-instance deployments. The
// critical section is a SET NX key holding a random token.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
	logger  *zap.SugaredLogger
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithRedisPrefix sets the key prefix. Default: "formflow:state:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithRedisTTL sets how long idle state is kept.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithLockTTL bounds how long an abandoned lock blocks other requests.
func WithLockTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithRedisLogger overrides the logger used for unlock failures.
func WithRedisLogger(logger *zap.SugaredLogger) RedisOption {
	return func(s *RedisStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewRedisStore wraps client. The client is not closed by the store.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:  client,
		prefix:  "formflow:state:",
		ttl:     DefaultTTL,
		lockTTL: 30 * time.Second,
		logger:  zap.S(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisStore) lockKey(sessionID string) string {
	return s.prefix + "lock:" + sessionID
}

// Lock implements Store.
func (s *RedisStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	key := s.lockKey(sessionID)
	token := uuid.NewString()
	for {
		ok, err := s.client.SetNX(ctx, key, token, s.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("session: acquire lock: %w", err)
		}
		if ok {
			return onceFunc(func() {
				if err := unlockScript.Run(context.Background(), s.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
					s.logger.Errorw("release session lock", "session", sessionID, "error", err)
				}
			}), nil
		}
		if err := waitRetry(ctx); err != nil {
			return nil, err
		}
	}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, sessionID, formKey string) (*FormState, error) {
	if err := validateIDs(sessionID, formKey); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, stateKey(s.prefix, sessionID, formKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewFormState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load state: %w", err)
	}
	return Unmarshal(data)
}

// Save implements Store. Empty state removes the key.
func (s *RedisStore) Save(ctx context.Context, sessionID, formKey string, state *FormState) error {
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
	if err := s.client.Set(ctx, stateKey(s.prefix, sessionID, formKey), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: save state: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, sessionID, formKey string) error {
	if err := validateIDs(sessionID, formKey); err != nil {
		return err
	}
	if err := s.client.Del(ctx, stateKey(s.prefix, sessionID, formKey)).Err(); err != nil {
		return fmt.Errorf("session: delete state: %w", err)
	}
	return nil
}
