package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("CUSTIMPORT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CUSTIMPORT_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func TestRedisStoreTakeConsumesOnce(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, "custimport:test:"+uuid.NewString(), time.Minute, nil)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant, Headers: []string{"Navn"}})
	require.NoError(t, err)

	_, err = store.Get(ctx, uuid.New(), s.ID)
	require.ErrorIs(t, err, ErrSessionForbidden)

	taken, err := store.Take(ctx, tenant, s.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"Navn"}, taken.Headers)

	_, err = store.Take(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreExpiredPayloadIsRejected(t *testing.T) {
	client := newTestRedis(t)
	now := time.Now()
	clock := func() time.Time { return now }
	store := NewRedisStore(client, "custimport:test:"+uuid.NewString(), time.Minute, clock)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestRedisStoreReplaceKeepsTakenSessionGone(t *testing.T) {
	client := newTestRedis(t)
	store := NewRedisStore(client, "custimport:test:"+uuid.NewString(), time.Minute, nil)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant})
	require.NoError(t, err)

	s.MappingConfirmed = true
	replaced, err := store.Replace(ctx, s)
	require.NoError(t, err)
	require.True(t, replaced.MappingConfirmed)

	_, err = store.Take(ctx, tenant, s.ID)
	require.NoError(t, err)

	_, err = store.Replace(ctx, s)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}
