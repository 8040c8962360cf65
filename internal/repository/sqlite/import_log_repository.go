package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
)

type importLogRepository struct {
	q querier
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	var rowNumber, batchID any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}
	if entry.BatchID != nil {
		batchID = entry.BatchID.String()
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO import_logs (id, tenant_id, batch_id, file_name, row_number, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID.String(), entry.TenantID.String(), batchID, entry.FileName, rowNumber, entry.ErrorMessage, formatTime(entry.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to record import log: %w", err)
	}
	return nil
}

func (r *importLogRepository) List(ctx context.Context, tenantID uuid.UUID, batchID *uuid.UUID, limit int, offset int) ([]domain.ImportLogEntry, error) {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	var batchFilter any
	if batchID != nil {
		batchFilter = batchID.String()
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT id, tenant_id, batch_id, file_name, row_number, error_message, created_at
		 FROM import_logs
		 WHERE tenant_id = ? AND (? IS NULL OR batch_id = ?)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		tenantID.String(), batchFilter, batchFilter, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportLogEntry{}
	for rows.Next() {
		var (
			entry      domain.ImportLogEntry
			id, tenant string
			batch      sql.NullString
			rowNumber  sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&id, &tenant, &batch, &entry.FileName, &rowNumber, &entry.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", err)
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if entry.TenantID, err = uuid.Parse(tenant); err != nil {
			return nil, err
		}
		if batch.Valid {
			parsed, err := uuid.Parse(batch.String)
			if err != nil {
				return nil, err
			}
			entry.BatchID = &parsed
		}
		if rowNumber.Valid {
			value := int(rowNumber.Int64)
			entry.RowNumber = &value
		}
		if entry.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", err)
	}
	return logs, nil
}
