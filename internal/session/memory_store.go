package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
	ttl      time.Duration
	now      Clock
}

// NewMemoryStore creates a store with the given TTL. A nil clock uses time.Now.
func NewMemoryStore(ttl time.Duration, clock Clock) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = time.Now
	}
	return &MemoryStore{sessions: make(map[uuid.UUID]Session), ttl: ttl, now: clock}
}

func (m *MemoryStore) Put(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s = stamp(s, m.now(), m.ttl)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) Replace(_ context.Context, s Session) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.lookup(s.TenantID, s.ID); err != nil {
		return Session{}, err
	}
	s = stamp(s, m.now(), m.ttl)
	m.sessions[s.ID] = s
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, tenantID, id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lookup(tenantID, id)
}

func (m *MemoryStore) Take(_ context.Context, tenantID, id uuid.UUID) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.lookup(tenantID, id)
	if err != nil {
		return Session{}, err
	}
	delete(m.sessions, id)
	return s, nil
}

func (m *MemoryStore) Delete(_ context.Context, tenantID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if s.TenantID != tenantID {
		return ErrSessionForbidden
	}
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) Sweep(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunSweeper sweeps every interval until ctx is cancelled.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		logger.WithField("interval", interval).Warn("session sweeper disabled")
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := m.Sweep(ctx)
			if err != nil {
				logger.WithError(err).Warn("session sweep failed")
				continue
			}
			if removed > 0 {
				logger.WithField("removed", removed).Debug("expired import sessions swept")
			}
		}
	}
}

func (m *MemoryStore) lookup(tenantID, id uuid.UUID) (Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := check(s, tenantID, m.now()); err != nil {
		return Session{}, err
	}
	return s, nil
}
