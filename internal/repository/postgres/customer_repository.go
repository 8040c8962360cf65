package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/textsim"
)

const customerColumns = `id, tenant_id, external_ref, name, org_number, address, postal_code, city,
	contact_person, email, phone, category, subtype, equipment, service_mode,
	last_service_date, next_service_date, notes, created_at, updated_at`

type customerRepository struct {
	q querier
}

func (r *customerRepository) Create(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO customers (id, tenant_id, external_ref, name, name_key, org_number, address, postal_code,
			city, contact_person, email, phone, category, subtype, equipment, service_mode,
			last_service_date, next_service_date, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		 RETURNING `+customerColumns,
		c.ID, c.TenantID, c.ExternalRef, c.Name, textsim.Key(c.Name), c.OrgNumber, c.Address, c.PostalCode,
		c.City, c.ContactPerson, c.Email, c.Phone, c.Category, c.Subtype, c.Equipment, c.ServiceMode,
		c.LastServiceDate, c.NextServiceDate, c.Notes, c.CreatedAt, c.UpdatedAt,
	)
	created, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}
	return created, nil
}

func (r *customerRepository) Update(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	row := r.q.QueryRow(ctx,
		`UPDATE customers SET external_ref = $3, name = $4, name_key = $5, org_number = $6, address = $7,
			postal_code = $8, city = $9, contact_person = $10, email = $11, phone = $12, category = $13,
			subtype = $14, equipment = $15, service_mode = $16, last_service_date = $17,
			next_service_date = $18, notes = $19, updated_at = $20
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+customerColumns,
		c.ID, c.TenantID, c.ExternalRef, c.Name, textsim.Key(c.Name), c.OrgNumber, c.Address,
		c.PostalCode, c.City, c.ContactPerson, c.Email, c.Phone, c.Category,
		c.Subtype, c.Equipment, c.ServiceMode, c.LastServiceDate,
		c.NextServiceDate, c.Notes, c.UpdatedAt,
	)
	updated, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, repository.ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("failed to update customer: %w", err)
	}
	return updated, nil
}

func (r *customerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Customer, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Customer{}, repository.ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (r *customerRepository) ListByExternalRefs(ctx context.Context, tenantID uuid.UUID, refs []string) ([]domain.Customer, error) {
	lowered := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = strings.ToLower(strings.TrimSpace(ref)); ref != "" {
			lowered = append(lowered, ref)
		}
	}
	if len(lowered) == 0 {
		return []domain.Customer{}, nil
	}
	return r.list(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE tenant_id = $1 AND LOWER(external_ref) = ANY($2)
		 ORDER BY updated_at DESC`,
		tenantID, lowered,
	)
}

// FindDuplicateCandidates ranks exact name key matches first so the limit only trims
// postal code neighbours.
func (r *customerRepository) FindDuplicateCandidates(ctx context.Context, tenantID uuid.UUID, query domain.DuplicateQuery) ([]domain.Customer, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE tenant_id = $1
		   AND (($2 <> '' AND postal_code = $2) OR ($3 <> '' AND name_key = $3))
		 ORDER BY ($3 <> '' AND name_key = $3) DESC, updated_at DESC
		 LIMIT $4`,
		tenantID, query.PostalCode, query.NameKey, limit,
	)
}

func (r *customerRepository) List(ctx context.Context, tenantID uuid.UUID, limit int, offset int) ([]domain.Customer, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return r.list(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = $1
		 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
}

func (r *customerRepository) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE tenant_id = $1`, tenantID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

func (r *customerRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Customer, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := []domain.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate customers: %w", err)
	}
	return customers, nil
}

func scanCustomer(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(
		&c.ID, &c.TenantID, &c.ExternalRef, &c.Name, &c.OrgNumber, &c.Address, &c.PostalCode, &c.City,
		&c.ContactPerson, &c.Email, &c.Phone, &c.Category, &c.Subtype, &c.Equipment, &c.ServiceMode,
		&c.LastServiceDate, &c.NextServiceDate, &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}
