// Package session holds staged imports between preview and execute.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/mapping"
)

// DefaultTTL is how long a staged import stays available after its last write.
const DefaultTTL = time.Hour

var (
	ErrSessionNotFound  = errors.New("import session not found")
	ErrSessionExpired   = errors.New("import session expired")
	ErrSessionForbidden = errors.New("import session belongs to another tenant")
)

// Session is a staged import awaiting confirmation.
type Session struct {
	ID               uuid.UUID           `json:"id"`
	TenantID         uuid.UUID           `json:"tenant_id"`
	BatchID          uuid.UUID           `json:"batch_id"`
	FileName         string              `json:"file_name"`
	ContentHash      string              `json:"content_hash"`
	Sheet            string              `json:"sheet,omitempty"`
	HeaderRowIndex   int                 `json:"header_row_index"`
	Headers          []string            `json:"headers"`
	Resolution       mapping.Resolution  `json:"resolution"`
	MappingConfirmed bool                `json:"mapping_confirmed"`
	Rows             []domain.StagingRow `json:"rows"`
	CreatedAt        time.Time           `json:"created_at"`
	ExpiresAt        time.Time           `json:"expires_at"`
}

// Store keeps sessions keyed by id. Every read is tenant checked.
type Store interface {
	Put(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (Session, error)
	// Replace overwrites a live session and refreshes its TTL. It never recreates a
	// session that was taken or deleted; that case fails with ErrSessionNotFound.
	Replace(ctx context.Context, s Session) (Session, error)
	// Take returns the session and removes it in one step; a second Take fails with ErrSessionNotFound.
	Take(ctx context.Context, tenantID, id uuid.UUID) (Session, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	// Sweep drops expired sessions and reports how many were removed.
	Sweep(ctx context.Context) (int, error)
}

// Clock returns the current time.
type Clock func() time.Time

func stamp(s Session, now time.Time, ttl time.Duration) Session {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.ExpiresAt = now.Add(ttl)
	return s
}

func check(s Session, tenantID uuid.UUID, now time.Time) error {
	if s.TenantID != tenantID {
		return ErrSessionForbidden
	}
	if !now.Before(s.ExpiresAt) {
		return ErrSessionExpired
	}
	return nil
}
