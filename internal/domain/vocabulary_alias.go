package domain

import (
	"time"

	"github.com/google/uuid"
)

// VocabularyAlias maps a tenant's dirty value to a canonical vocabulary entry.
type VocabularyAlias struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Alias     string    `json:"alias"`
	Canonical string    `json:"canonical"`
	CreatedAt time.Time `json:"created_at"`
}
