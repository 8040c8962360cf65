package sqlite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
)

type auditRepository struct {
	q querier
}

func (r *auditRepository) Record(ctx context.Context, entry domain.AuditEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode audit changes: %w", err)
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO import_audit (id, tenant_id, batch_id, customer_id, action, row_number, changes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.TenantID.String(), entry.BatchID.String(), entry.CustomerID.String(),
		string(entry.Action), entry.RowNumber, string(changes), formatTime(entry.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, tenant_id, batch_id, customer_id, action, row_number, changes, created_at
		 FROM import_audit WHERE tenant_id = ? AND batch_id = ?
		 ORDER BY row_number`,
		tenantID.String(), batchID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry                               domain.AuditEntry
			id, tenant, batch, customer, action string
			changes, createdAt                  string
		)
		if err := rows.Scan(&id, &tenant, &batch, &customer, &action, &entry.RowNumber, &changes, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if entry.TenantID, err = uuid.Parse(tenant); err != nil {
			return nil, err
		}
		if entry.BatchID, err = uuid.Parse(batch); err != nil {
			return nil, err
		}
		if entry.CustomerID, err = uuid.Parse(customer); err != nil {
			return nil, err
		}
		entry.Action = domain.FinalAction(action)
		if err := json.Unmarshal([]byte(changes), &entry.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode audit changes: %w", err)
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
