package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}
}

func TestMemoryStoreTakeConsumesOnce(t *testing.T) {
	store := NewMemoryStore(time.Hour, newClock().Now)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant, FileName: "kunder.csv"})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, s.ID)

	taken, err := store.Take(ctx, tenant, s.ID)
	require.NoError(t, err)
	require.Equal(t, "kunder.csv", taken.FileName)

	_, err = store.Take(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreConcurrentTakeHasSingleWinner(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()
	tenant := uuid.New()
	s, err := store.Put(ctx, Session{TenantID: tenant})
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		winner int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Take(ctx, tenant, s.ID); err == nil {
				mu.Lock()
				winner++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winner)
}

func TestMemoryStoreExpiryIsDistinctFromMissing(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant})
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = store.Get(ctx, tenant, s.ID)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = store.Get(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionExpired)
	_, err = store.Take(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionExpired)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, removed)
	require.Equal(t, 0, store.Len())

	_, err = store.Get(ctx, tenant, s.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStorePutRefreshesExpiry(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant})
	require.NoError(t, err)
	created := s.CreatedAt

	clock.Advance(50 * time.Minute)
	s, err = store.Put(ctx, s)
	require.NoError(t, err)
	require.Equal(t, created, s.CreatedAt)

	clock.Advance(50 * time.Minute)
	_, err = store.Get(ctx, tenant, s.ID)
	require.NoError(t, err)
}

func TestMemoryStoreRejectsOtherTenants(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	ctx := context.Background()
	owner := uuid.New()
	other := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: owner})
	require.NoError(t, err)

	_, err = store.Get(ctx, other, s.ID)
	require.ErrorIs(t, err, ErrSessionForbidden)
	_, err = store.Take(ctx, other, s.ID)
	require.ErrorIs(t, err, ErrSessionForbidden)
	require.ErrorIs(t, store.Delete(ctx, other, s.ID), ErrSessionForbidden)

	_, err = store.Get(ctx, owner, s.ID)
	require.NoError(t, err, "a forbidden take must not consume the session")
}

func TestRunSweeperStopsOnCancel(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Minute, clock.Now)
	ctx, cancel := context.WithCancel(context.Background())
	_, err := store.Put(ctx, Session{TenantID: uuid.New()})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)

	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond, discardLogger())
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestMemoryStoreReplaceNeverRecreatesTakenSession(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore(time.Hour, clock.Now)
	ctx := context.Background()
	tenant := uuid.New()

	s, err := store.Put(ctx, Session{TenantID: tenant, FileName: "kunder.csv"})
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	s.MappingConfirmed = true
	replaced, err := store.Replace(ctx, s)
	require.NoError(t, err)
	require.True(t, replaced.MappingConfirmed)
	require.Equal(t, clock.Now().Add(time.Hour), replaced.ExpiresAt)

	_, err = store.Replace(ctx, Session{ID: s.ID, TenantID: uuid.New()})
	require.ErrorIs(t, err, ErrSessionForbidden)

	_, err = store.Take(ctx, tenant, s.ID)
	require.NoError(t, err)

	_, err = store.Replace(ctx, s)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.Equal(t, 0, store.Len())
}

func TestMemoryStoreRunSweeperIgnoresNonPositiveInterval(t *testing.T) {
	store := NewMemoryStore(time.Hour, nil)
	logger, hook := test.NewNullLogger()

	store.RunSweeper(context.Background(), 0, logger)

	require.Len(t, hook.Entries, 1)
	require.Equal(t, "session sweeper disabled", hook.LastEntry().Message)
}
