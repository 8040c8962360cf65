package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

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
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO customers (id, tenant_id, external_ref, name, name_key, org_number, address, postal_code,
			city, contact_person, email, phone, category, subtype, equipment, service_mode,
			last_service_date, next_service_date, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(), c.TenantID.String(), c.ExternalRef, c.Name, textsim.Key(c.Name), c.OrgNumber, c.Address, c.PostalCode,
		c.City, c.ContactPerson, c.Email, c.Phone, c.Category, c.Subtype, c.Equipment, c.ServiceMode,
		formatTimePtr(c.LastServiceDate, domain.DateLayout), formatTimePtr(c.NextServiceDate, domain.DateLayout),
		c.Notes, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	); err != nil {
		return domain.Customer{}, fmt.Errorf("failed to create customer: %w", err)
	}
	return r.GetByID(ctx, c.TenantID, c.ID)
}

func (r *customerRepository) Update(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	res, err := r.q.ExecContext(ctx,
		`UPDATE customers SET external_ref = ?, name = ?, name_key = ?, org_number = ?, address = ?,
			postal_code = ?, city = ?, contact_person = ?, email = ?, phone = ?, category = ?,
			subtype = ?, equipment = ?, service_mode = ?, last_service_date = ?,
			next_service_date = ?, notes = ?, updated_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		c.ExternalRef, c.Name, textsim.Key(c.Name), c.OrgNumber, c.Address,
		c.PostalCode, c.City, c.ContactPerson, c.Email, c.Phone, c.Category,
		c.Subtype, c.Equipment, c.ServiceMode, formatTimePtr(c.LastServiceDate, domain.DateLayout),
		formatTimePtr(c.NextServiceDate, domain.DateLayout), c.Notes, formatTime(c.UpdatedAt),
		c.ID.String(), c.TenantID.String(),
	)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("failed to update customer: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Customer{}, repository.ErrNotFound
	}
	return r.GetByID(ctx, c.TenantID, c.ID)
}

func (r *customerRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.Customer, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), id.String(),
	)
	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, repository.ErrNotFound
		}
		return domain.Customer{}, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

func (r *customerRepository) ListByExternalRefs(ctx context.Context, tenantID uuid.UUID, refs []string) ([]domain.Customer, error) {
	args := []any{tenantID.String()}
	placeholders := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = strings.ToLower(strings.TrimSpace(ref)); ref != "" {
			args = append(args, ref)
			placeholders = append(placeholders, "?")
		}
	}
	if len(placeholders) == 0 {
		return []domain.Customer{}, nil
	}
	return r.list(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE tenant_id = ? AND lower(external_ref) IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY updated_at DESC`,
		args...,
	)
}

// FindDuplicateCandidates ranks exact name key matches ahead of postal code neighbours so
// the limit never cuts off an identical customer in a busy postal code.
func (r *customerRepository) FindDuplicateCandidates(ctx context.Context, tenantID uuid.UUID, query domain.DuplicateQuery) ([]domain.Customer, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	return r.list(ctx,
		`SELECT `+customerColumns+` FROM customers
		 WHERE tenant_id = ?
		   AND ((? <> '' AND postal_code = ?) OR (? <> '' AND name_key = ?))
		 ORDER BY (name_key = ?) DESC, updated_at DESC
		 LIMIT ?`,
		tenantID.String(), query.PostalCode, query.PostalCode, query.NameKey, query.NameKey, query.NameKey, limit,
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
		`SELECT `+customerColumns+` FROM customers WHERE tenant_id = ?
		 ORDER BY created_at, id LIMIT ? OFFSET ?`,
		tenantID.String(), limit, offset,
	)
}

func (r *customerRepository) Count(ctx context.Context, tenantID uuid.UUID) (int, error) {
	var count int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE tenant_id = ?`, tenantID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return count, nil
}

func (r *customerRepository) list(ctx context.Context, query string, args ...any) ([]domain.Customer, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
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

func scanCustomer(row scanner) (domain.Customer, error) {
	var (
		c                  domain.Customer
		id, tenantID       string
		lastService        sql.NullString
		nextService        sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(
		&id, &tenantID, &c.ExternalRef, &c.Name, &c.OrgNumber, &c.Address, &c.PostalCode, &c.City,
		&c.ContactPerson, &c.Email, &c.Phone, &c.Category, &c.Subtype, &c.Equipment, &c.ServiceMode,
		&lastService, &nextService, &c.Notes, &createdAt, &updated,
	); err != nil {
		return domain.Customer{}, err
	}

	var err error
	if c.ID, err = uuid.Parse(id); err != nil {
		return domain.Customer{}, err
	}
	if c.TenantID, err = uuid.Parse(tenantID); err != nil {
		return domain.Customer{}, err
	}
	if c.LastServiceDate, err = parseTimePtr(lastService, domain.DateLayout); err != nil {
		return domain.Customer{}, err
	}
	if c.NextServiceDate, err = parseTimePtr(nextService, domain.DateLayout); err != nil {
		return domain.Customer{}, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.Customer{}, err
	}
	if c.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.Customer{}, err
	}
	return c, nil
}
