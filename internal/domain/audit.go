package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records one customer created or updated by an import commit.
type AuditEntry struct {
	ID         uuid.UUID   `json:"id"`
	TenantID   uuid.UUID   `json:"tenant_id"`
	BatchID    uuid.UUID   `json:"batch_id"`
	CustomerID uuid.UUID   `json:"customer_id"`
	Action     FinalAction `json:"action"`
	RowNumber  int         `json:"row_number"`
	Changes    []Change    `json:"changes,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
}
