package domain

// Field names a target attribute on a customer record that an import column can map to.
type Field string

const (
	FieldName            Field = "name"
	FieldOrgNumber       Field = "org_number"
	FieldAddress         Field = "address"
	FieldPostalCode      Field = "postal_code"
	FieldCity            Field = "city"
	FieldContactPerson   Field = "contact_person"
	FieldEmail           Field = "email"
	FieldPhone           Field = "phone"
	FieldCategory        Field = "category"
	FieldSubtype         Field = "subtype"
	FieldEquipment       Field = "equipment"
	FieldServiceMode     Field = "service_mode"
	FieldLastServiceDate Field = "last_service_date"
	FieldNextServiceDate Field = "next_service_date"
	FieldExternalRef     Field = "external_ref"
	FieldNotes           Field = "notes"
)

// FieldType represents the inferred type of a column or custom field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
	FieldTypeFloat   FieldType = "float"
	FieldTypeBoolean FieldType = "boolean"
	FieldTypeDate    FieldType = "date"
)

// FieldDefinition describes one allowed target field.
type FieldDefinition struct {
	Name       Field     `json:"name"`
	Type       FieldType `json:"type"`
	Required   bool      `json:"required"`
	MinLength  int       `json:"minLength,omitempty"`
	Vocabulary string    `json:"vocabulary,omitempty"`
	Label      string    `json:"label"`
}

var targetFields = []FieldDefinition{
	{Name: FieldName, Type: FieldTypeString, Required: true, MinLength: 2, Label: "Name"},
	{Name: FieldOrgNumber, Type: FieldTypeString, Label: "Organisation number"},
	{Name: FieldAddress, Type: FieldTypeString, Required: true, MinLength: 3, Label: "Address"},
	{Name: FieldPostalCode, Type: FieldTypeString, Label: "Postal code"},
	{Name: FieldCity, Type: FieldTypeString, Label: "City"},
	{Name: FieldContactPerson, Type: FieldTypeString, Label: "Contact person"},
	{Name: FieldEmail, Type: FieldTypeString, Label: "Email"},
	{Name: FieldPhone, Type: FieldTypeString, Label: "Phone"},
	{Name: FieldCategory, Type: FieldTypeString, Vocabulary: "category", Label: "Category"},
	{Name: FieldSubtype, Type: FieldTypeString, Vocabulary: "subtype", Label: "Subtype"},
	{Name: FieldEquipment, Type: FieldTypeString, Vocabulary: "equipment", Label: "Equipment"},
	{Name: FieldServiceMode, Type: FieldTypeString, Vocabulary: "service_mode", Label: "Service mode"},
	{Name: FieldLastServiceDate, Type: FieldTypeDate, Label: "Last service date"},
	{Name: FieldNextServiceDate, Type: FieldTypeDate, Label: "Next service date"},
	{Name: FieldExternalRef, Type: FieldTypeString, Label: "External reference"},
	{Name: FieldNotes, Type: FieldTypeString, Label: "Notes"},
}

// TargetFields returns the allowed target set in declaration order.
func TargetFields() []FieldDefinition {
	out := make([]FieldDefinition, len(targetFields))
	copy(out, targetFields)
	return out
}

// LookupField returns the definition for name and whether it is an allowed target.
func LookupField(name Field) (FieldDefinition, bool) {
	for _, def := range targetFields {
		if def.Name == name {
			return def, true
		}
	}
	return FieldDefinition{}, false
}

// IsTargetField reports whether name belongs to the allowed target set.
func IsTargetField(name Field) bool {
	_, ok := LookupField(name)
	return ok
}
