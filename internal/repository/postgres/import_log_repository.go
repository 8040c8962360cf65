package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rpattn/custimport/internal/domain"
)

type importLogRepository struct {
	q querier
}

func (r *importLogRepository) Record(ctx context.Context, entry domain.ImportLogEntry) error {
	var rowNumber any
	if entry.RowNumber != nil {
		rowNumber = *entry.RowNumber
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	_, err := r.q.Exec(
		ctx,
		`INSERT INTO import_logs (id, tenant_id, batch_id, file_name, row_number, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.TenantID,
		entry.BatchID,
		entry.FileName,
		rowNumber,
		entry.ErrorMessage,
	)
	if err != nil {
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

	rows, err := r.q.Query(
		ctx,
		`SELECT id, tenant_id, batch_id, file_name, row_number, error_message, created_at
		 FROM import_logs
		 WHERE tenant_id = $1
		   AND ($2::uuid IS NULL OR batch_id = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		tenantID,
		batchID,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list import logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.ImportLogEntry{}
	for rows.Next() {
		var (
			entry     domain.ImportLogEntry
			rowNumber pgtype.Int4
			createdAt pgtype.Timestamptz
		)
		if scanErr := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.BatchID,
			&entry.FileName,
			&rowNumber,
			&entry.ErrorMessage,
			&createdAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan import log: %w", scanErr)
		}

		if rowNumber.Valid {
			value := int(rowNumber.Int32)
			entry.RowNumber = &value
		}
		if createdAt.Valid {
			entry.CreatedAt = createdAt.Time
		}

		logs = append(logs, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate import logs: %w", rowsErr)
	}

	return logs, nil
}
