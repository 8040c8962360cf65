package validator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rpattn/custimport/internal/domain"
	recordvalidator "github.com/rpattn/custimport/pkg/validator"
)

// ErrUnknownTarget is returned when a mapping points at a field outside the allowed target set.
var ErrUnknownTarget = errors.New("unknown target field")

// ErrDuplicateTarget is returned when two source columns claim the same target field.
var ErrDuplicateTarget = errors.New("target field mapped more than once")

// ValidateMapping ensures every mapped target is an allowed field and that no target is
// claimed twice. Empty targets mean the column is intentionally left unmapped.
func ValidateMapping(mapping map[string]domain.Field) error {
	headers := make([]string, 0, len(mapping))
	for header := range mapping {
		headers = append(headers, header)
	}
	sort.Strings(headers)

	claimed := make(map[domain.Field]string, len(mapping))
	for _, header := range headers {
		target := mapping[header]
		if target == "" {
			continue
		}
		if !domain.IsTargetField(target) {
			return fmt.Errorf("column %q: %w %q", header, ErrUnknownTarget, target)
		}
		if previous, ok := claimed[target]; ok {
			return fmt.Errorf("columns %q and %q: %w %q", previous, header, ErrDuplicateTarget, target)
		}
		claimed[target] = header
	}
	return nil
}

// RecordDefinitions converts the allowed target set into record validator definitions.
func RecordDefinitions(fields []domain.FieldDefinition) map[string]recordvalidator.FieldDefinition {
	defs := make(map[string]recordvalidator.FieldDefinition, len(fields))
	for _, field := range fields {
		defs[string(field.Name)] = recordvalidator.FieldDefinition{
			Type:      string(field.Type),
			Required:  field.Required,
			MinLength: field.MinLength,
		}
	}
	return defs
}
