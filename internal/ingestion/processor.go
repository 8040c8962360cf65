package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/dedupe"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/mapping"
	"github.com/rpattn/custimport/internal/normalize"
	schemavalidator "github.com/rpattn/custimport/internal/schema/validator"
	"github.com/rpattn/custimport/internal/spreadsheet"
	"github.com/rpattn/custimport/internal/vocabulary"
	recordvalidator "github.com/rpattn/custimport/pkg/validator"
)

// Issue codes raised by record validation.
const (
	CodeMissingRequired = "missing_required"
	CodeTooShort        = "too_short"
	CodeTypeMismatch    = "type_mismatch"
)

// RowInput is one data row keyed by source header.
type RowInput struct {
	Number int
	Raw    map[string]string
}

// Processor stages rows: mapping, normalization, vocabulary matching, validation and
// duplicate detection. It keeps no per-row state and is safe for concurrent use.
type Processor struct {
	normalizer  *normalize.Normalizer
	records     *recordvalidator.RecordValidator
	definitions map[string]recordvalidator.FieldDefinition
	fields      []domain.FieldDefinition
}

// NewProcessor builds a processor for the fixed customer target set.
func NewProcessor() *Processor {
	fields := domain.TargetFields()
	return &Processor{
		normalizer:  normalize.New(),
		records:     recordvalidator.NewRecordValidator(),
		definitions: schemavalidator.RecordDefinitions(fields),
		fields:      fields,
	}
}

// ProcessAll stages every input row. Only infrastructure errors from duplicate lookup
// abort; data problems end up as row issues.
func (p *Processor) ProcessAll(ctx context.Context, tenantID uuid.UUID, res mapping.Resolution, vocab *vocabulary.Matcher, detector *dedupe.Detector, inputs []RowInput) ([]domain.StagingRow, error) {
	rows := make([]domain.StagingRow, 0, len(inputs))
	for _, in := range inputs {
		row, err := p.Process(ctx, tenantID, res, vocab, detector, in)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Process stages a single row.
func (p *Processor) Process(ctx context.Context, tenantID uuid.UUID, res mapping.Resolution, vocab *vocabulary.Matcher, detector *dedupe.Detector, in RowInput) (domain.StagingRow, error) {
	row := domain.StagingRow{
		RowNumber:         in.Number,
		Raw:               make(map[string]string, len(in.Raw)),
		Mapped:            make(map[domain.Field]string),
		VocabularyMatches: make(map[domain.Field]domain.VocabularyMatch),
		Status:            domain.RowStatusPending,
	}
	for header, value := range in.Raw {
		row.Raw[header] = value
	}

	flagged := make(map[domain.Field]bool)
	for _, col := range res.Columns {
		if col.Target == "" {
			continue
		}
		result := p.normalizer.Value(col.Target, in.Raw[col.Header])
		row.Changes = append(row.Changes, result.Changes...)
		for _, issue := range result.Issues {
			issue.SourceColumn = col.Header
			row.Issues = append(row.Issues, issue)
			flagged[col.Target] = true
		}
		if result.Value == "" {
			continue
		}
		row.Mapped[col.Target] = result.Value

		def, _ := domain.LookupField(col.Target)
		if def.Vocabulary == "" || vocab == nil {
			continue
		}
		match := vocab.Match(def.Vocabulary, result.Value)
		row.VocabularyMatches[col.Target] = match
		if match.Type != domain.VocabularyNone && match.Value != result.Value {
			row.Mapped[col.Target] = match.Value
			row.Changes = append(row.Changes, domain.Change{
				Field:  col.Target,
				Before: result.Value,
				After:  match.Value,
				Reason: fmt.Sprintf("%s vocabulary match", match.Type),
			})
		}
		if issue := vocabulary.Issue(col.Target, col.Header, match); issue != nil {
			row.Issues = append(row.Issues, *issue)
		}
	}

	row.Issues = append(row.Issues, p.validate(row.Mapped, res, flagged)...)
	row.Completeness = p.completeness(row.Mapped)

	if row.HasErrors() {
		row.Status = domain.RowStatusError
		return row, nil
	}

	if detector != nil {
		match, err := detector.Detect(ctx, tenantID, dedupe.CandidateFromValues(row.Mapped))
		if err != nil {
			return domain.StagingRow{}, fmt.Errorf("row %d: %w", in.Number, err)
		}
		if match != nil {
			duplicate := match.DuplicateMatch
			row.Duplicate = &duplicate
			row.Status = domain.RowStatusDuplicate
			return row, nil
		}
	}

	if row.HasWarnings() {
		row.Status = domain.RowStatusWarning
	} else {
		row.Status = domain.RowStatusValid
	}
	return row, nil
}

func (p *Processor) validate(mapped map[domain.Field]string, res mapping.Resolution, flagged map[domain.Field]bool) []domain.ValidationIssue {
	values := make(map[string]string, len(mapped))
	for field, value := range mapped {
		values[string(field)] = value
	}
	columns := make(map[domain.Field]string, len(res.Columns))
	for _, col := range res.Columns {
		if col.Target != "" {
			columns[col.Target] = col.Header
		}
	}

	result := p.records.ValidateRecord(values, p.definitions)
	issues := make([]domain.ValidationIssue, 0, len(result.Errors)+len(result.Warnings))
	for _, verr := range result.Errors {
		field := domain.Field(verr.Field)
		issue := domain.ValidationIssue{
			Severity:     domain.SeverityError,
			Code:         CodeMissingRequired,
			Field:        field,
			SourceColumn: columns[field],
			Value:        verr.Value,
			Message:      "is required",
		}
		if verr.Value != "" {
			def, _ := domain.LookupField(field)
			issue.Code = CodeTooShort
			issue.Message = fmt.Sprintf("%q must be at least %d characters", verr.Value, def.MinLength)
		}
		if issue.SourceColumn == "" && issue.Code == CodeMissingRequired {
			issue.SuggestedFix = fmt.Sprintf("map a column to %s", field)
		}
		issues = append(issues, issue)
	}
	for _, verr := range result.Warnings {
		field := domain.Field(verr.Field)
		if flagged[field] {
			continue
		}
		issues = append(issues, domain.ValidationIssue{
			Severity:     domain.SeverityWarning,
			Code:         CodeTypeMismatch,
			Field:        field,
			SourceColumn: columns[field],
			Value:        verr.Value,
			Message:      verr.Message,
		})
	}
	return issues
}

func (p *Processor) completeness(mapped map[domain.Field]string) float64 {
	if len(p.fields) == 0 {
		return 0
	}
	populated := 0
	for _, def := range p.fields {
		if mapped[def.Name] != "" {
			populated++
		}
	}
	return float64(populated) / float64(len(p.fields))
}

// tableInputs pairs each data row of table with its source headers.
func tableInputs(table spreadsheet.Table) []RowInput {
	inputs := make([]RowInput, 0, len(table.Rows))
	for _, row := range table.Rows {
		raw := make(map[string]string, len(table.Headers))
		for idx, header := range table.Headers {
			if idx < len(row.Values) {
				raw[header] = row.Values[idx]
			} else {
				raw[header] = ""
			}
		}
		inputs = append(inputs, RowInput{Number: row.Number, Raw: raw})
	}
	return inputs
}

// stagedInputs recovers row inputs from previously staged rows.
func stagedInputs(rows []domain.StagingRow) []RowInput {
	inputs := make([]RowInput, len(rows))
	for i, row := range rows {
		inputs[i] = RowInput{Number: row.RowNumber, Raw: row.Raw}
	}
	return inputs
}
