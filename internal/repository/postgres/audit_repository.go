package postgres

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
	if _, err := r.q.Exec(ctx,
		`INSERT INTO import_audit (id, tenant_id, batch_id, customer_id, action, row_number, changes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.TenantID, entry.BatchID, entry.CustomerID, string(entry.Action), entry.RowNumber, changes, entry.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

func (r *auditRepository) ListByBatch(ctx context.Context, tenantID, batchID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, tenant_id, batch_id, customer_id, action, row_number, changes, created_at
		 FROM import_audit WHERE tenant_id = $1 AND batch_id = $2
		 ORDER BY row_number`,
		tenantID, batchID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []domain.AuditEntry{}
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			action  string
			changes []byte
		)
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.BatchID, &entry.CustomerID, &action, &entry.RowNumber, &changes, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = domain.FinalAction(action)
		if err := json.Unmarshal(changes, &entry.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode audit changes: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}
