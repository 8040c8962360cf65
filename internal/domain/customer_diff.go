package domain

import (
	"sort"
	"strings"
	"time"
)

// DiffCustomer lists the field changes that applying values to existing would produce.
// Empty incoming values never clear existing data, and comparisons ignore case and
// surrounding whitespace so cosmetic differences are not reported as updates. Date values
// that WithValues would not store are not changes either.
func DiffCustomer(existing Customer, values map[Field]string) []Change {
	current := existing.Values()

	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, string(field))
	}
	sort.Strings(fields)

	changes := make([]Change, 0, len(fields))
	for _, name := range fields {
		field := Field(name)
		if !IsTargetField(field) {
			continue
		}
		after := strings.TrimSpace(values[field])
		if after == "" {
			continue
		}
		if isDateField(field) {
			if _, err := time.Parse(DateLayout, after); err != nil {
				continue
			}
		}
		before := current[field]
		if strings.EqualFold(strings.TrimSpace(before), after) {
			continue
		}
		changes = append(changes, Change{Field: field, Before: before, After: after, Reason: "import update"})
	}

	return changes
}

func isDateField(field Field) bool {
	return field == FieldLastServiceDate || field == FieldNextServiceDate
}
