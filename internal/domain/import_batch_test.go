package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestImportBatchAdvanceWalksLifecycle(t *testing.T) {
	batch := NewImportBatch(uuid.New(), "kunder.xlsx", 1024, "abc")

	advanced, err := batch.Advance(BatchCommitted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if advanced.Status != BatchCommitted {
		t.Fatalf("expected committed, got %s", advanced.Status)
	}
	if advanced.CommittedAt == nil {
		t.Fatalf("expected committed timestamp")
	}
}

func TestImportBatchRejectsSkippedSteps(t *testing.T) {
	batch := NewImportBatch(uuid.New(), "kunder.csv", 10, "abc")

	if _, err := batch.TransitionTo(BatchCommitted); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestImportBatchGatesValidationOnRemapping(t *testing.T) {
	batch := NewImportBatch(uuid.New(), "kunder.csv", 10, "abc")
	batch, err := batch.Advance(BatchMapped)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	batch = batch.WithMapping("sig", true, false)

	if _, err := batch.TransitionTo(BatchValidating); !errors.Is(err, ErrRemappingRequired) {
		t.Fatalf("expected ErrRemappingRequired, got %v", err)
	}

	batch = batch.WithMapping("sig", false, false)
	if _, err := batch.TransitionTo(BatchValidating); err != nil {
		t.Fatalf("expected validating to be allowed after confirmation: %v", err)
	}
}

func TestImportBatchTerminalStates(t *testing.T) {
	batch := NewImportBatch(uuid.New(), "kunder.csv", 10, "abc")
	cancelled, err := batch.TransitionTo(BatchCancelled)
	if err != nil {
		t.Fatalf("unexpected error cancelling: %v", err)
	}
	if _, err := cancelled.TransitionTo(BatchFailed); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected terminal state to reject transitions, got %v", err)
	}
}

func TestSummarizeRowsIsDerivedFromRows(t *testing.T) {
	rows := []StagingRow{
		{Status: RowStatusValid, FinalAction: ActionCreated, Completeness: 1},
		{Status: RowStatusWarning, FinalAction: ActionCreated, Completeness: 0.5, Issues: []ValidationIssue{{Severity: SeverityWarning, Code: "invalid_email"}}},
		{Status: RowStatusDuplicate, FinalAction: ActionUpdated, Completeness: 0.5},
		{Status: RowStatusError, FinalAction: ActionSkipped, Issues: []ValidationIssue{{Severity: SeverityError, Code: "required"}}},
	}

	summary, report := SummarizeRows(rows)

	if summary.Total != 4 || summary.Valid != 1 || summary.Warning != 1 || summary.Duplicate != 1 || summary.Error != 1 {
		t.Fatalf("unexpected status counts: %+v", summary)
	}
	if summary.Created != 2 || summary.Updated != 1 || summary.Skipped != 1 || summary.Failed != 0 {
		t.Fatalf("unexpected action counts: %+v", summary)
	}
	if report.AverageCompleteness != 0.5 {
		t.Fatalf("expected average completeness 0.5, got %v", report.AverageCompleteness)
	}
	if report.IssuesByCode["invalid_email"] != 1 || report.IssuesByCode["required"] != 1 {
		t.Fatalf("unexpected issue counts: %+v", report.IssuesByCode)
	}
}
