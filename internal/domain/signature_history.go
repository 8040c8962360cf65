package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignatureHistory tracks how often a tenant has uploaded a given column layout.
type SignatureHistory struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	Signature   string    `json:"signature"`
	Columns     []string  `json:"columns"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	Occurrences int       `json:"occurrences"`
}
