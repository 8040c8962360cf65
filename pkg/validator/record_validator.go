package validator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Field types understood by the record validator.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeFloat   = "float"
	TypeBoolean = "boolean"
	TypeDate    = "date"
)

const dateLayout = "2006-01-02"

// RecordValidator validates flat string records against field definitions
type RecordValidator struct{}

// NewRecordValidator creates a new record validator
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// FieldDefinition represents a field definition for validation
type FieldDefinition struct {
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	MinLength int    `json:"min_length,omitempty"`
	MaxLength int    `json:"max_length,omitempty"`
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid  bool              `json:"is_valid"`
	Errors   []ValidationError `json:"errors"`
	Warnings []ValidationError `json:"warnings"`
}

// ValidateRecord validates values against field definitions. Empty strings count as missing.
func (rv *RecordValidator) ValidateRecord(values map[string]string, fieldDefinitions map[string]FieldDefinition) ValidationResult {
	result := ValidationResult{
		IsValid:  true,
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	names := make([]string, 0, len(fieldDefinitions))
	for name := range fieldDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, fieldName := range names {
		fieldDef := fieldDefinitions[fieldName]
		value := strings.TrimSpace(values[fieldName])

		if value == "" {
			if fieldDef.Required {
				result.IsValid = false
				result.Errors = append(result.Errors, ValidationError{
					Field:   fieldName,
					Message: fmt.Sprintf("required field '%s' is missing", fieldName),
				})
			}
			continue
		}

		if fieldDef.MinLength > 0 && utf8.RuneCountInString(value) < fieldDef.MinLength {
			verr := ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("field '%s' must be at least %d characters", fieldName, fieldDef.MinLength),
				Value:   value,
			}
			if fieldDef.Required {
				result.IsValid = false
				result.Errors = append(result.Errors, verr)
			} else {
				result.Warnings = append(result.Warnings, verr)
			}
			continue
		}

		if fieldDef.MaxLength > 0 && utf8.RuneCountInString(value) > fieldDef.MaxLength {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   fieldName,
				Message: fmt.Sprintf("field '%s' is longer than %d characters", fieldName, fieldDef.MaxLength),
				Value:   value,
			})
		}

		if err := rv.validateFieldType(fieldName, value, fieldDef.Type); err != nil {
			result.Warnings = append(result.Warnings, ValidationError{
				Field:   fieldName,
				Message: err.Error(),
				Value:   value,
			})
		}
	}

	// Check for extra properties not defined in schema
	extras := make([]string, 0)
	for propertyName := range values {
		if _, exists := fieldDefinitions[propertyName]; !exists {
			extras = append(extras, propertyName)
		}
	}
	sort.Strings(extras)
	for _, propertyName := range extras {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   propertyName,
			Message: fmt.Sprintf("property '%s' is not defined in schema", propertyName),
			Value:   values[propertyName],
		})
	}

	return result
}

// validateFieldType validates the type of a field value
func (rv *RecordValidator) validateFieldType(fieldName, value, expectedType string) error {
	switch strings.ToLower(expectedType) {
	case "", TypeString:
		return nil
	case TypeInteger:
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return fmt.Errorf("field '%s' must be an integer", fieldName)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("field '%s' must be a number", fieldName)
		}
	case TypeBoolean:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("field '%s' must be a boolean", fieldName)
		}
	case TypeDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			return fmt.Errorf("field '%s' must be a date in YYYY-MM-DD form", fieldName)
		}
	default:
		return fmt.Errorf("unknown field type: %s", expectedType)
	}
	return nil
}
