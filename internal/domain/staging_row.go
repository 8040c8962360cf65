package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RowStatus is the staging classification of a row.
type RowStatus string

const (
	RowStatusPending   RowStatus = "pending"
	RowStatusValid     RowStatus = "valid"
	RowStatusWarning   RowStatus = "warning"
	RowStatusDuplicate RowStatus = "duplicate"
	RowStatusError     RowStatus = "error"
)

// FinalAction is the terminal outcome of a row after commit.
type FinalAction string

const (
	ActionCreated FinalAction = "created"
	ActionUpdated FinalAction = "updated"
	ActionSkipped FinalAction = "skipped"
	ActionError   FinalAction = "error"
)

// MatchType classifies how a duplicate was found.
type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
)

// VocabularyMatchType classifies how a free-text value resolved against a vocabulary.
type VocabularyMatchType string

const (
	VocabularyExact      VocabularyMatchType = "exact"
	VocabularyNormalized VocabularyMatchType = "normalized"
	VocabularyFuzzy      VocabularyMatchType = "fuzzy"
	VocabularyNone       VocabularyMatchType = "none"
)

// ValidationIssue describes a single problem found in a row.
type ValidationIssue struct {
	Severity     Severity `json:"severity"`
	Code         string   `json:"code"`
	Field        Field    `json:"field,omitempty"`
	SourceColumn string   `json:"source_column,omitempty"`
	Value        string   `json:"value,omitempty"`
	Message      string   `json:"message"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Error renders the issue the way row errors are reported to users.
func (i ValidationIssue) Error() string {
	if i.Field == "" {
		return i.Message
	}
	return fmt.Sprintf("field %s: %s", i.Field, i.Message)
}

// Change records a value-changing coercion or an update applied to a customer.
type Change struct {
	Field  Field  `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
	Reason string `json:"reason,omitempty"`
}

// DuplicateMatch links a staged row to an existing customer.
type DuplicateMatch struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Name       string    `json:"name"`
	Type       MatchType `json:"type"`
	Score      float64   `json:"score"`
}

// VocabularyCandidate is a scored canonical value.
type VocabularyCandidate struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// VocabularyMatch is the resolution of one free-text value against a vocabulary.
type VocabularyMatch struct {
	Kind       string                `json:"kind"`
	Raw        string                `json:"raw"`
	Value      string                `json:"value"`
	Type       VocabularyMatchType   `json:"type"`
	Confidence float64               `json:"confidence"`
	Ambiguous  bool                  `json:"ambiguous,omitempty"`
	Candidates []VocabularyCandidate `json:"candidates,omitempty"`
}

// StagingRow is one source row after mapping, normalization and matching.
type StagingRow struct {
	RowNumber         int                       `json:"row_number"`
	Raw               map[string]string         `json:"raw"`
	Mapped            map[Field]string          `json:"mapped"`
	Changes           []Change                  `json:"changes,omitempty"`
	Issues            []ValidationIssue         `json:"issues,omitempty"`
	Status            RowStatus                 `json:"status"`
	Duplicate         *DuplicateMatch           `json:"duplicate,omitempty"`
	VocabularyMatches map[Field]VocabularyMatch `json:"vocabulary_matches,omitempty"`
	Completeness      float64                   `json:"completeness"`
	FinalAction       FinalAction               `json:"final_action,omitempty"`
	CustomerID        *uuid.UUID                `json:"customer_id,omitempty"`
}

// HasErrors reports whether any issue on the row has error severity.
func (r StagingRow) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// HasWarnings reports whether any issue on the row has warning severity.
func (r StagingRow) HasWarnings() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityWarning {
			return true
		}
	}
	return false
}

// WithIssues returns a copy of the row whose issue list is replaced by issues.
func (r StagingRow) WithIssues(issues []ValidationIssue) StagingRow {
	out := r
	out.Issues = append([]ValidationIssue(nil), issues...)
	return out
}

// Committable reports whether the row may be written to the customer store.
func (r StagingRow) Committable() bool {
	return r.Status != RowStatusError
}

// Summary aggregates staging and commit counts for a batch.
type Summary struct {
	Total     int `json:"total"`
	Valid     int `json:"valid"`
	Warning   int `json:"warning"`
	Error     int `json:"error"`
	Duplicate int `json:"duplicate"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// QualityReport carries aggregate data quality figures for a batch.
type QualityReport struct {
	AverageCompleteness float64        `json:"average_completeness"`
	IssuesByCode        map[string]int `json:"issues_by_code"`
}

// SummarizeRows derives batch counts and the quality report from staging rows.
func SummarizeRows(rows []StagingRow) (Summary, QualityReport) {
	summary := Summary{Total: len(rows)}
	report := QualityReport{IssuesByCode: map[string]int{}}

	var completeness float64
	for _, row := range rows {
		switch row.Status {
		case RowStatusValid:
			summary.Valid++
		case RowStatusWarning:
			summary.Warning++
		case RowStatusError:
			summary.Error++
		case RowStatusDuplicate:
			summary.Duplicate++
		}

		switch row.FinalAction {
		case ActionCreated:
			summary.Created++
		case ActionUpdated:
			summary.Updated++
		case ActionSkipped:
			summary.Skipped++
		case ActionError:
			summary.Failed++
		}

		for _, issue := range row.Issues {
			report.IssuesByCode[issue.Code]++
		}
		completeness += row.Completeness
	}

	if len(rows) > 0 {
		report.AverageCompleteness = completeness / float64(len(rows))
	}

	return summary, report
}
