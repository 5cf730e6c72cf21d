package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/redis/go-redis/v9"

	auth "github.com/goliatone/go-dashboard-auth"
)

// DefaultKeyPrefix namespaces profile keys
const DefaultKeyPrefix = "dashboard:profile:"

// RedisStore caches profiles in Redis as JSON in front of another
// ProfileStore. Cache failures never fail a read: the store is consulted
// directly and the error is logged.
type RedisStore struct {
	next   auth.ProfileStore
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger auth.Logger
}

var _ auth.ProfileStore = (*RedisStore)(nil)

// NewRedisStore wraps next
func NewRedisStore(next auth.ProfileStore, client redis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: DefaultKeyPrefix,
		logger: auth.NoopLogger(),
	}
}

func (s *RedisStore) WithLogger(logger auth.Logger) *RedisStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *RedisStore) WithPrefix(prefix string) *RedisStore {
	if prefix != "" {
		s.prefix = prefix
	}
	return s
}

func (s *RedisStore) Get(ctx context.Context, id string) (*auth.Profile, error) {
	raw, err := s.client.Get(ctx, s.key(id)).Bytes()
	switch {
	case err == nil:
		profile := &auth.Profile{}
		jsonErr := json.Unmarshal(raw, profile)
		if jsonErr == nil {
			return profile, nil
		}
		s.logger.Warn("discarding unreadable cached profile", "user_id", id, "error", jsonErr)
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("profile cache read failed", "user_id", id, "error", err)
	}

	profile, err := s.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.set(ctx, profile)
	return profile, nil
}

// Upsert writes through. A failed write evicts the cached copy.
func (s *RedisStore) Upsert(ctx context.Context, profile *auth.Profile) error {
	if err := s.next.Upsert(ctx, profile); err != nil {
		s.Invalidate(ctx, profile.ID)
		return err
	}
	s.set(ctx, profile)
	return nil
}

// Invalidate deletes the cached profile for id
func (s *RedisStore) Invalidate(ctx context.Context, id string) {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		s.logger.Warn("profile cache delete failed", "user_id", id, "error", err)
	}
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return auth.ProviderError(err, "profile cache unreachable")
	}
	return nil
}

func (s *RedisStore) set(ctx context.Context, profile *auth.Profile) {
	if profile == nil || profile.ID == "" {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		s.logger.Warn("profile cache encode failed", "user_id", profile.ID, "error",
			goerrors.Wrap(err, goerrors.CategoryInternal, "encode profile"))
		return
	}

	if err := s.client.Set(ctx, s.key(profile.ID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("profile cache write failed", "user_id", profile.ID, "error", err)
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
