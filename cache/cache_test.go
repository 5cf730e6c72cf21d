package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-dashboard-auth"
)

type countingStore struct {
	profiles map[string]*auth.Profile
	gets     int
	failGet  error
	// emptyGet answers every Get with (nil, nil)
	emptyGet bool
}

func newCountingStore(profiles ...*auth.Profile) *countingStore {
	s := &countingStore{profiles: map[string]*auth.Profile{}}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}
	return s
}

func (s *countingStore) Get(_ context.Context, id string) (*auth.Profile, error) {
	s.gets++
	if s.failGet != nil {
		return nil, s.failGet
	}
	if s.emptyGet {
		return nil, nil
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, auth.ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *countingStore) Upsert(_ context.Context, p *auth.Profile) error {
	s.profiles[p.ID] = p.Clone()
	return nil
}

func ownerProfile() *auth.Profile {
	return &auth.Profile{ID: "42", Email: "owner@example.com", Role: auth.RoleBusinessOwner, BusinessName: "Ada Legal"}
}

func TestLRUStoreCachesReads(t *testing.T) {
	next := newCountingStore(ownerProfile())
	store := NewLRUStore(next, 10, time.Minute)
	ctx := context.Background()

	first, err := store.Get(ctx, "42")
	require.NoError(t, err)
	second, err := store.Get(ctx, "42")
	require.NoError(t, err)

	assert.Equal(t, 1, next.gets)
	assert.Equal(t, first, second)

	// callers can not mutate the cached copy
	second.Role = auth.RoleSuperAdmin
	third, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleBusinessOwner, third.Role)
}

func TestLRUStoreDoesNotCacheMisses(t *testing.T) {
	next := newCountingStore()
	store := NewLRUStore(next, 10, time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, auth.IsProfileNotFound(err))
	_, err = store.Get(ctx, "missing")
	assert.True(t, auth.IsProfileNotFound(err))

	assert.Equal(t, 2, next.gets)
	assert.Equal(t, 0, store.Len())
}

func TestLRUStoreDoesNotCacheEmptyResults(t *testing.T) {
	next := newCountingStore(ownerProfile())
	next.emptyGet = true
	store := NewLRUStore(next, 10, time.Minute)
	ctx := context.Background()

	found, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, found)
	assert.Equal(t, 0, store.Len())

	next.emptyGet = false
	found, err = store.Get(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, auth.RoleBusinessOwner, found.Role)
	assert.Equal(t, 2, next.gets)
}

func TestLRUStoreUpsertRefreshesCache(t *testing.T) {
	next := newCountingStore(ownerProfile())
	store := NewLRUStore(next, 10, time.Minute)
	ctx := context.Background()

	_, err := store.Get(ctx, "42")
	require.NoError(t, err)

	updated := ownerProfile()
	updated.Role = auth.RoleSuperAdmin
	require.NoError(t, store.Upsert(ctx, updated))

	found, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSuperAdmin, found.Role)
	assert.Equal(t, 1, next.gets)

	store.Invalidate("42")
	_, err = store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, next.gets)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreCachesReads(t *testing.T) {
	mr, client := setupRedis(t)
	next := newCountingStore(ownerProfile())
	store := NewRedisStore(next, client, time.Minute)
	ctx := context.Background()

	first, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.True(t, mr.Exists(DefaultKeyPrefix+"42"))

	second, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, next.gets)
	assert.Equal(t, first.BusinessName, second.BusinessName)
	assert.Equal(t, first.Role, second.Role)

	mr.FastForward(2 * time.Minute)
	_, err = store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 2, next.gets)
}

func TestRedisStorePropagatesStoreErrors(t *testing.T) {
	_, client := setupRedis(t)
	next := newCountingStore()
	next.failGet = errors.New("permission denied")
	store := NewRedisStore(next, client, time.Minute)

	_, err := store.Get(context.Background(), "42")
	assert.EqualError(t, err, "permission denied")
}

func TestRedisStoreFallsThroughWhenRedisIsDown(t *testing.T) {
	mr, client := setupRedis(t)
	next := newCountingStore(ownerProfile())
	store := NewRedisStore(next, client, time.Minute)
	ctx := context.Background()

	mr.Close()

	found, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "42", found.ID)
	assert.Error(t, store.Ping(ctx))
}

func TestRedisStoreUpsertAndInvalidate(t *testing.T) {
	mr, client := setupRedis(t)
	next := newCountingStore()
	store := NewRedisStore(next, client, time.Minute).WithPrefix("test:")
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, ownerProfile()))
	assert.True(t, mr.Exists("test:42"))

	found, err := store.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "Ada Legal", found.BusinessName)
	assert.Equal(t, 0, next.gets)

	store.Invalidate(ctx, "42")
	assert.False(t, mr.Exists("test:42"))
}
