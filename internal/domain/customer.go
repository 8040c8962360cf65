package domain

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the persisted customer record owned by the customer store.
type Customer struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	ExternalRef     string     `json:"external_ref,omitempty"`
	Name            string     `json:"name"`
	OrgNumber       string     `json:"org_number,omitempty"`
	Address         string     `json:"address"`
	PostalCode      string     `json:"postal_code,omitempty"`
	City            string     `json:"city,omitempty"`
	ContactPerson   string     `json:"contact_person,omitempty"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	Category        string     `json:"category,omitempty"`
	Subtype         string     `json:"subtype,omitempty"`
	Equipment       string     `json:"equipment,omitempty"`
	ServiceMode     string     `json:"service_mode,omitempty"`
	LastServiceDate *time.Time `json:"last_service_date,omitempty"`
	NextServiceDate *time.Time `json:"next_service_date,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewCustomer creates a customer for tenantID populated from canonical field values.
func NewCustomer(tenantID uuid.UUID, values map[Field]string) Customer {
	now := time.Now().UTC()
	c := Customer{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return c.WithValues(values)
}

// WithValues returns a copy of the customer where every non-empty value overwrites the
// matching field. Empty values leave the existing field untouched.
func (c Customer) WithValues(values map[Field]string) Customer {
	out := c
	for field, value := range values {
		if value == "" {
			continue
		}
		switch field {
		case FieldName:
			out.Name = value
		case FieldOrgNumber:
			out.OrgNumber = value
		case FieldAddress:
			out.Address = value
		case FieldPostalCode:
			out.PostalCode = value
		case FieldCity:
			out.City = value
		case FieldContactPerson:
			out.ContactPerson = value
		case FieldEmail:
			out.Email = value
		case FieldPhone:
			out.Phone = value
		case FieldCategory:
			out.Category = value
		case FieldSubtype:
			out.Subtype = value
		case FieldEquipment:
			out.Equipment = value
		case FieldServiceMode:
			out.ServiceMode = value
		case FieldLastServiceDate:
			if t, err := time.Parse(DateLayout, value); err == nil {
				out.LastServiceDate = &t
			}
		case FieldNextServiceDate:
			if t, err := time.Parse(DateLayout, value); err == nil {
				out.NextServiceDate = &t
			}
		case FieldExternalRef:
			out.ExternalRef = value
		case FieldNotes:
			out.Notes = value
		}
	}
	return out
}

// Values flattens the customer into canonical field values.
func (c Customer) Values() map[Field]string {
	values := map[Field]string{
		FieldName:          c.Name,
		FieldOrgNumber:     c.OrgNumber,
		FieldAddress:       c.Address,
		FieldPostalCode:    c.PostalCode,
		FieldCity:          c.City,
		FieldContactPerson: c.ContactPerson,
		FieldEmail:         c.Email,
		FieldPhone:         c.Phone,
		FieldCategory:      c.Category,
		FieldSubtype:       c.Subtype,
		FieldEquipment:     c.Equipment,
		FieldServiceMode:   c.ServiceMode,
		FieldExternalRef:   c.ExternalRef,
		FieldNotes:         c.Notes,
	}
	if c.LastServiceDate != nil {
		values[FieldLastServiceDate] = c.LastServiceDate.Format(DateLayout)
	}
	if c.NextServiceDate != nil {
		values[FieldNextServiceDate] = c.NextServiceDate.Format(DateLayout)
	}
	return values
}

// DateLayout is the canonical date representation for imported dates.
const DateLayout = "2006-01-02"

// DuplicateQuery narrows the customers the store returns as duplicate candidates.
type DuplicateQuery struct {
	NameKey    string
	PostalCode string
	Limit      int
}
