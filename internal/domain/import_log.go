package domain

import (
	"time"

	"github.com/google/uuid"
)

// ImportLogEntry captures row level failures that occur while committing an import.
type ImportLogEntry struct {
	ID           uuid.UUID  `json:"id"`
	TenantID     uuid.UUID  `json:"tenant_id"`
	BatchID      *uuid.UUID `json:"batch_id,omitempty"`
	FileName     string     `json:"file_name"`
	RowNumber    *int       `json:"row_number,omitempty"`
	ErrorMessage string     `json:"error_message"`
	CreatedAt    time.Time  `json:"created_at"`
}
