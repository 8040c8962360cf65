package validator

import (
	"testing"
)

func TestRecordValidatorRequiredFields(t *testing.T) {
	v := NewRecordValidator()

	definitions := map[string]FieldDefinition{
		"name":    {Type: TypeString, Required: true, MinLength: 2},
		"address": {Type: TypeString, Required: true, MinLength: 3},
	}

	result := v.ValidateRecord(map[string]string{"name": "", "address": "Storgata 1"}, definitions)
	if result.IsValid {
		t.Fatalf("expected missing name to be rejected")
	}

	result = v.ValidateRecord(map[string]string{"name": "O", "address": "Storgata 1"}, definitions)
	if result.IsValid || result.Errors[0].Field != "name" {
		t.Fatalf("expected short name to be rejected, got %+v", result)
	}

	result = v.ValidateRecord(map[string]string{"name": "Ol", "address": "Sto"}, definitions)
	if !result.IsValid {
		t.Fatalf("expected minimum lengths to be accepted, got errors: %+v", result.Errors)
	}
}

func TestRecordValidatorRejectsUndefinedFields(t *testing.T) {
	v := NewRecordValidator()

	result := v.ValidateRecord(map[string]string{"name": "Ola", "shoe_size": "44"}, map[string]FieldDefinition{
		"name": {Type: TypeString},
	})
	if result.IsValid {
		t.Fatalf("expected undefined property to be rejected")
	}
	if result.Errors[0].Field != "shoe_size" {
		t.Fatalf("unexpected error field %q", result.Errors[0].Field)
	}
}

func TestRecordValidatorTypeMismatchIsWarning(t *testing.T) {
	v := NewRecordValidator()

	result := v.ValidateRecord(map[string]string{"next_service_date": "soon"}, map[string]FieldDefinition{
		"next_service_date": {Type: TypeDate},
	})
	if !result.IsValid {
		t.Fatalf("type mismatches on optional fields should not invalidate the record")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %+v", result.Warnings)
	}
}
