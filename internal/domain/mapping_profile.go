package domain

import (
	"time"

	"github.com/google/uuid"
)

// MappingProfile is a saved association between a column signature and target fields.
type MappingProfile struct {
	ID              uuid.UUID        `json:"id"`
	TenantID        uuid.UUID        `json:"tenant_id"`
	Name            string           `json:"name"`
	ColumnSignature string           `json:"column_signature"`
	SourceColumns   []string         `json:"source_columns"`
	Mapping         map[string]Field `json:"mapping"`
	Confirmed       bool             `json:"confirmed"`
	IsDefault       bool             `json:"is_default"`
	UsageCount      int              `json:"usage_count"`
	LastUsedAt      *time.Time       `json:"last_used_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// WithMapping returns a copy of the profile with its mapping replaced.
func (p MappingProfile) WithMapping(mapping map[string]Field) MappingProfile {
	out := p
	out.Mapping = make(map[string]Field, len(mapping))
	for header, field := range mapping {
		out.Mapping[header] = field
	}
	out.UpdatedAt = time.Now().UTC()
	return out
}

// Confirm returns a copy of the profile flagged as user confirmed.
func (p MappingProfile) Confirm() MappingProfile {
	out := p
	out.Confirmed = true
	out.UpdatedAt = time.Now().UTC()
	return out
}

// MarkUsed returns a copy of the profile with its usage counters bumped.
func (p MappingProfile) MarkUsed(at time.Time) MappingProfile {
	out := p
	out.UsageCount++
	used := at.UTC()
	out.LastUsedAt = &used
	out.UpdatedAt = used
	return out
}
