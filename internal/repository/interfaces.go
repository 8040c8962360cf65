package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rpattn/custimport/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("record not found")

// CustomerRepository defines the operations the import needs on the customer store.
// External references are compared case-insensitively.
type CustomerRepository interface {
	Create(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	Update(ctx context.Context, customer domain.Customer) (domain.Customer, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Customer, error)
	ListByExternalRefs(ctx context.Context, tenantID uuid.UUID, refs []string) ([]domain.Customer, error)
	FindDuplicateCandidates(ctx context.Context, tenantID uuid.UUID, query domain.DuplicateQuery) ([]domain.Customer, error)
	List(ctx context.Context, tenantID uuid.UUID, limit int, offset int) ([]domain.Customer, error)
	Count(ctx context.Context, tenantID uuid.UUID) (int, error)
}

// MappingProfileRepository stores saved column mappings
type MappingProfileRepository interface {
	GetDefault(ctx context.Context, tenantID uuid.UUID, signature string) (domain.MappingProfile, error)
	Save(ctx context.Context, profile domain.MappingProfile) (domain.MappingProfile, error)
	MarkUsed(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.MappingProfile, error)
}

// SignatureHistoryRepository tracks the column layouts a tenant has uploaded
type SignatureHistoryRepository interface {
	Get(ctx context.Context, tenantID uuid.UUID, signature string) (domain.SignatureHistory, error)
	HasAny(ctx context.Context, tenantID uuid.UUID) (bool, error)
	RecordOccurrence(ctx context.Context, tenantID uuid.UUID, signature string, columns []string, at time.Time) (domain.SignatureHistory, error)
}

// BatchRepository persists the import batch lifecycle
type BatchRepository interface {
	Create(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error)
	Update(ctx context.Context, batch domain.ImportBatch) (domain.ImportBatch, error)
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportBatch, error)
	FindCommittedByHash(ctx context.Context, tenantID uuid.UUID, contentHash string) (domain.ImportBatch, error)
}

// AuditRepository stores one entry per customer affected by a commit
type AuditRepository interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
	ListByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]domain.AuditEntry, error)
}

// ImportLogRepository stores row level commit failures for observability.
type ImportLogRepository interface {
	Record(ctx context.Context, entry domain.ImportLogEntry) error
	List(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error)
}

// VocabularyAliasRepository stores tenant specific vocabulary synonyms
type VocabularyAliasRepository interface {
	Upsert(ctx context.Context, alias domain.VocabularyAlias) error
	List(ctx context.Context, tenantID uuid.UUID) ([]domain.VocabularyAlias, error)
}

// Repositories groups every repository bound to the same connection or transaction.
type Repositories interface {
	Customers() CustomerRepository
	Profiles() MappingProfileRepository
	Signatures() SignatureHistoryRepository
	Batches() BatchRepository
	Audit() AuditRepository
	ImportLogs() ImportLogRepository
	Aliases() VocabularyAliasRepository
}

// Tx is a unit of work. Repositories obtained from it run inside the transaction.
type Tx interface {
	Repositories
	// InSavepoint runs fn inside a savepoint. An error from fn rolls back only the
	// statements fn issued and is returned unchanged.
	InSavepoint(ctx context.Context, fn func(Tx) error) error
}

// UnitOfWork opens transactions.
type UnitOfWork interface {
	// InTx commits when fn returns nil and rolls back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Store is the storage port used by the import pipeline.
type Store interface {
	Repositories
	UnitOfWork
	Close() error
}
