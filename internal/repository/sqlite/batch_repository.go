package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
)

const batchColumns = `id, tenant_id, file_name, file_size, content_hash, column_signature, row_count, status,
	sheet_name, header_row_index, requires_remapping, format_change_detected, summary, quality_report,
	created_at, updated_at, committed_at`

type batchRepository struct {
	q querier
}

func (r *batchRepository) Create(ctx context.Context, b domain.ImportBatch) (domain.ImportBatch, error) {
	summary, quality, err := encodeBatchReports(b)
	if err != nil {
		return domain.ImportBatch{}, err
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO import_batches (id, tenant_id, file_name, file_size, content_hash, column_signature,
			row_count, status, sheet_name, header_row_index, requires_remapping, format_change_detected,
			summary, quality_report, created_at, updated_at, committed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.TenantID.String(), b.FileName, b.FileSize, b.ContentHash, b.ColumnSignature,
		b.RowCount, string(b.Status), b.SheetName, b.HeaderRowIndex, b.RequiresRemapping, b.FormatChangeDetected,
		summary, quality, formatTime(b.CreatedAt), formatTime(b.UpdatedAt), formatTimePtr(b.CommittedAt, timeLayout),
	); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to create import batch: %w", err)
	}
	return r.GetByID(ctx, b.TenantID, b.ID)
}

func (r *batchRepository) Update(ctx context.Context, b domain.ImportBatch) (domain.ImportBatch, error) {
	summary, quality, err := encodeBatchReports(b)
	if err != nil {
		return domain.ImportBatch{}, err
	}
	res, err := r.q.ExecContext(ctx,
		`UPDATE import_batches SET column_signature = ?, row_count = ?, status = ?, sheet_name = ?,
			header_row_index = ?, requires_remapping = ?, format_change_detected = ?, summary = ?,
			quality_report = ?, updated_at = ?, committed_at = ?
		 WHERE id = ? AND tenant_id = ?`,
		b.ColumnSignature, b.RowCount, string(b.Status), b.SheetName,
		b.HeaderRowIndex, b.RequiresRemapping, b.FormatChangeDetected, summary,
		quality, formatTime(b.UpdatedAt), formatTimePtr(b.CommittedAt, timeLayout),
		b.ID.String(), b.TenantID.String(),
	)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to update import batch: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ImportBatch{}, repository.ErrNotFound
	}
	return r.GetByID(ctx, b.TenantID, b.ID)
}

func (r *batchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportBatch, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE tenant_id = ? AND id = ?`,
		tenantID.String(), id.String(),
	)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImportBatch{}, repository.ErrNotFound
		}
		return domain.ImportBatch{}, fmt.Errorf("failed to get import batch: %w", err)
	}
	return b, nil
}

func (r *batchRepository) FindCommittedByHash(ctx context.Context, tenantID uuid.UUID, contentHash string) (domain.ImportBatch, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM import_batches
		 WHERE tenant_id = ? AND content_hash = ? AND status = ?
		 ORDER BY committed_at DESC LIMIT 1`,
		tenantID.String(), contentHash, string(domain.BatchCommitted),
	)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImportBatch{}, repository.ErrNotFound
		}
		return domain.ImportBatch{}, fmt.Errorf("failed to find committed import batch: %w", err)
	}
	return b, nil
}

func encodeBatchReports(b domain.ImportBatch) (string, string, error) {
	summary, err := json.Marshal(b.Summary)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode batch summary: %w", err)
	}
	quality, err := json.Marshal(b.QualityReport)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode quality report: %w", err)
	}
	return string(summary), string(quality), nil
}

func scanBatch(row scanner) (domain.ImportBatch, error) {
	var (
		b                  domain.ImportBatch
		id, tenantID       string
		status             string
		summary, quality   string
		createdAt, updated string
		committedAt        sql.NullString
	)
	if err := row.Scan(
		&id, &tenantID, &b.FileName, &b.FileSize, &b.ContentHash, &b.ColumnSignature, &b.RowCount, &status,
		&b.SheetName, &b.HeaderRowIndex, &b.RequiresRemapping, &b.FormatChangeDetected, &summary, &quality,
		&createdAt, &updated, &committedAt,
	); err != nil {
		return domain.ImportBatch{}, err
	}

	var err error
	if b.ID, err = uuid.Parse(id); err != nil {
		return domain.ImportBatch{}, err
	}
	if b.TenantID, err = uuid.Parse(tenantID); err != nil {
		return domain.ImportBatch{}, err
	}
	b.Status = domain.BatchStatus(status)
	if err := json.Unmarshal([]byte(summary), &b.Summary); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to decode batch summary: %w", err)
	}
	if err := json.Unmarshal([]byte(quality), &b.QualityReport); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to decode quality report: %w", err)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.ImportBatch{}, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.ImportBatch{}, err
	}
	if b.CommittedAt, err = parseTimePtr(committedAt, timeLayout); err != nil {
		return domain.ImportBatch{}, err
	}
	return b, nil
}
