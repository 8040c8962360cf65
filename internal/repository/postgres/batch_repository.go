package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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
	row := r.q.QueryRow(ctx,
		`INSERT INTO import_batches (id, tenant_id, file_name, file_size, content_hash, column_signature,
			row_count, status, sheet_name, header_row_index, requires_remapping, format_change_detected,
			summary, quality_report, created_at, updated_at, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 RETURNING `+batchColumns,
		b.ID, b.TenantID, b.FileName, b.FileSize, b.ContentHash, b.ColumnSignature,
		b.RowCount, string(b.Status), b.SheetName, b.HeaderRowIndex, b.RequiresRemapping, b.FormatChangeDetected,
		summary, quality, b.CreatedAt, b.UpdatedAt, b.CommittedAt,
	)
	created, err := scanBatch(row)
	if err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to create import batch: %w", err)
	}
	return created, nil
}

func (r *batchRepository) Update(ctx context.Context, b domain.ImportBatch) (domain.ImportBatch, error) {
	summary, quality, err := encodeBatchReports(b)
	if err != nil {
		return domain.ImportBatch{}, err
	}
	row := r.q.QueryRow(ctx,
		`UPDATE import_batches SET column_signature = $3, row_count = $4, status = $5, sheet_name = $6,
			header_row_index = $7, requires_remapping = $8, format_change_detected = $9, summary = $10,
			quality_report = $11, updated_at = $12, committed_at = $13
		 WHERE id = $1 AND tenant_id = $2
		 RETURNING `+batchColumns,
		b.ID, b.TenantID, b.ColumnSignature, b.RowCount, string(b.Status), b.SheetName,
		b.HeaderRowIndex, b.RequiresRemapping, b.FormatChangeDetected, summary,
		quality, b.UpdatedAt, b.CommittedAt,
	)
	updated, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportBatch{}, repository.ErrNotFound
		}
		return domain.ImportBatch{}, fmt.Errorf("failed to update import batch: %w", err)
	}
	return updated, nil
}

func (r *batchRepository) GetByID(ctx context.Context, tenantID, id uuid.UUID) (domain.ImportBatch, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM import_batches WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportBatch{}, repository.ErrNotFound
		}
		return domain.ImportBatch{}, fmt.Errorf("failed to get import batch: %w", err)
	}
	return b, nil
}

func (r *batchRepository) FindCommittedByHash(ctx context.Context, tenantID uuid.UUID, contentHash string) (domain.ImportBatch, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM import_batches
		 WHERE tenant_id = $1 AND content_hash = $2 AND status = $3
		 ORDER BY committed_at DESC LIMIT 1`,
		tenantID, contentHash, string(domain.BatchCommitted),
	)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ImportBatch{}, repository.ErrNotFound
		}
		return domain.ImportBatch{}, fmt.Errorf("failed to find committed import batch: %w", err)
	}
	return b, nil
}

func encodeBatchReports(b domain.ImportBatch) ([]byte, []byte, error) {
	summary, err := json.Marshal(b.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode batch summary: %w", err)
	}
	quality, err := json.Marshal(b.QualityReport)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode quality report: %w", err)
	}
	return summary, quality, nil
}

func scanBatch(row pgx.Row) (domain.ImportBatch, error) {
	var (
		b       domain.ImportBatch
		status  string
		summary []byte
		quality []byte
	)
	if err := row.Scan(
		&b.ID, &b.TenantID, &b.FileName, &b.FileSize, &b.ContentHash, &b.ColumnSignature, &b.RowCount, &status,
		&b.SheetName, &b.HeaderRowIndex, &b.RequiresRemapping, &b.FormatChangeDetected, &summary, &quality,
		&b.CreatedAt, &b.UpdatedAt, &b.CommittedAt,
	); err != nil {
		return domain.ImportBatch{}, err
	}
	b.Status = domain.BatchStatus(status)
	if err := json.Unmarshal(summary, &b.Summary); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to decode batch summary: %w", err)
	}
	if err := json.Unmarshal(quality, &b.QualityReport); err != nil {
		return domain.ImportBatch{}, fmt.Errorf("failed to decode quality report: %w", err)
	}
	return b, nil
}
