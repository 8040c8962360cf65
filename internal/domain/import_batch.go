package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BatchStatus is a step in the import batch lifecycle.
type BatchStatus string

const (
	BatchUploaded   BatchStatus = "uploaded"
	BatchParsing    BatchStatus = "parsing"
	BatchParsed     BatchStatus = "parsed"
	BatchMapping    BatchStatus = "mapping"
	BatchMapped     BatchStatus = "mapped"
	BatchValidating BatchStatus = "validating"
	BatchValidated  BatchStatus = "validated"
	BatchCommitting BatchStatus = "committing"
	BatchCommitted  BatchStatus = "committed"
	BatchFailed     BatchStatus = "failed"
	BatchCancelled  BatchStatus = "cancelled"
)

var (
	// ErrInvalidTransition is returned for lifecycle moves the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid batch status transition")
	// ErrRemappingRequired guards the mapped → validating step while the mapping is unconfirmed.
	ErrRemappingRequired = errors.New("column mapping must be confirmed before validation")
)

var batchTransitions = map[BatchStatus]BatchStatus{
	BatchUploaded:   BatchParsing,
	BatchParsing:    BatchParsed,
	BatchParsed:     BatchMapping,
	BatchMapping:    BatchMapped,
	BatchMapped:     BatchValidating,
	BatchValidating: BatchValidated,
	BatchValidated:  BatchCommitting,
	BatchCommitting: BatchCommitted,
}

// IsTerminal reports whether no further transition is possible from the status.
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCommitted || s == BatchFailed || s == BatchCancelled
}

// ImportBatch records one uploaded file and its progress through the pipeline.
type ImportBatch struct {
	ID                   uuid.UUID     `json:"id"`
	TenantID             uuid.UUID     `json:"tenant_id"`
	FileName             string        `json:"file_name"`
	FileSize             int64         `json:"file_size"`
	ContentHash          string        `json:"content_hash"`
	ColumnSignature      string        `json:"column_signature"`
	RowCount             int           `json:"row_count"`
	Status               BatchStatus   `json:"status"`
	SheetName            string        `json:"sheet_name,omitempty"`
	HeaderRowIndex       int           `json:"header_row_index"`
	RequiresRemapping    bool          `json:"requires_remapping"`
	FormatChangeDetected bool          `json:"format_change_detected"`
	Summary              Summary       `json:"summary"`
	QualityReport        QualityReport `json:"quality_report"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
	CommittedAt          *time.Time    `json:"committed_at,omitempty"`
}

// NewImportBatch creates a batch in the uploaded state.
func NewImportBatch(tenantID uuid.UUID, fileName string, fileSize int64, contentHash string) ImportBatch {
	now := time.Now().UTC()
	return ImportBatch{
		ID:          uuid.New(),
		TenantID:    tenantID,
		FileName:    fileName,
		FileSize:    fileSize,
		ContentHash: contentHash,
		Status:      BatchUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
		QualityReport: QualityReport{
			IssuesByCode: map[string]int{},
		},
	}
}

// CanTransitionTo reports whether next is a legal successor of the current status.
func (b ImportBatch) CanTransitionTo(next BatchStatus) error {
	if b.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, b.Status)
	}
	if next == BatchFailed || next == BatchCancelled {
		return nil
	}
	if batchTransitions[b.Status] != next {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
	}
	if next == BatchValidating && b.RequiresRemapping {
		return ErrRemappingRequired
	}
	return nil
}

// TransitionTo returns a copy of the batch moved to next.
func (b ImportBatch) TransitionTo(next BatchStatus) (ImportBatch, error) {
	if err := b.CanTransitionTo(next); err != nil {
		return b, err
	}
	out := b
	out.Status = next
	out.UpdatedAt = time.Now().UTC()
	if next == BatchCommitted {
		committed := out.UpdatedAt
		out.CommittedAt = &committed
	}
	return out, nil
}

// Advance walks the batch forward through each intermediate status until it reaches target.
func (b ImportBatch) Advance(target BatchStatus) (ImportBatch, error) {
	current := b
	for current.Status != target {
		next, ok := batchTransitions[current.Status]
		if !ok {
			return b, fmt.Errorf("%w: %s cannot reach %s", ErrInvalidTransition, b.Status, target)
		}
		var err error
		current, err = current.TransitionTo(next)
		if err != nil {
			return b, err
		}
	}
	return current, nil
}

// WithRows returns a copy of the batch whose counts are derived from rows.
func (b ImportBatch) WithRows(rows []StagingRow) ImportBatch {
	out := b
	out.RowCount = len(rows)
	out.Summary, out.QualityReport = SummarizeRows(rows)
	out.UpdatedAt = time.Now().UTC()
	return out
}

// WithMapping returns a copy of the batch carrying the column signature and remapping flags.
func (b ImportBatch) WithMapping(signature string, requiresRemapping, formatChanged bool) ImportBatch {
	out := b
	out.ColumnSignature = signature
	out.RequiresRemapping = requiresRemapping
	out.FormatChangeDetected = formatChanged
	out.UpdatedAt = time.Now().UTC()
	return out
}
