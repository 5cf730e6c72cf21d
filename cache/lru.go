package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	auth "github.com/goliatone/go-dashboard-auth"
)

const (
	DefaultSize = 1024
	DefaultTTL  = time.Minute
)

// LRUStore caches profiles in process in front of another ProfileStore.
// Missing profiles are not cached.
type LRUStore struct {
	next  auth.ProfileStore
	cache *expirable.LRU[string, *auth.Profile]
}

var _ auth.ProfileStore = (*LRUStore)(nil)

// NewLRUStore wraps next. Non positive size or ttl fall back to the defaults.
func NewLRUStore(next auth.ProfileStore, size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &LRUStore{
		next:  next,
		cache: expirable.NewLRU[string, *auth.Profile](size, nil, ttl),
	}
}

func (s *LRUStore) Get(ctx context.Context, id string) (*auth.Profile, error) {
	if profile, ok := s.cache.Get(id); ok {
		return profile.Clone(), nil
	}

	profile, err := s.next.Get(ctx, id)
	if err != nil || profile == nil {
		return nil, err
	}
	s.cache.Add(id, profile.Clone())
	return profile, nil
}

// Upsert writes through and refreshes the cached copy
func (s *LRUStore) Upsert(ctx context.Context, profile *auth.Profile) error {
	if err := s.next.Upsert(ctx, profile); err != nil {
		s.cache.Remove(profile.ID)
		return err
	}
	s.cache.Add(profile.ID, profile.Clone())
	return nil
}

// Invalidate drops the cached profile for id
func (s *LRUStore) Invalidate(id string) {
	s.cache.Remove(id)
}

// Len reports the number of cached profiles
func (s *LRUStore) Len() int {
	return s.cache.Len()
}
