package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
)

type signatureRepository struct {
	q querier
}

func (r *signatureRepository) Get(ctx context.Context, tenantID uuid.UUID, signature string) (domain.SignatureHistory, error) {
	row := r.q.QueryRow(ctx,
		`SELECT tenant_id, signature, columns, first_seen_at, last_seen_at, occurrences
		 FROM signature_history WHERE tenant_id = $1 AND signature = $2`,
		tenantID, signature,
	)
	entry, err := scanSignature(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.SignatureHistory{}, repository.ErrNotFound
		}
		return domain.SignatureHistory{}, fmt.Errorf("failed to get signature history: %w", err)
	}
	return entry, nil
}

func (r *signatureRepository) HasAny(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM signature_history WHERE tenant_id = $1)`, tenantID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check signature history: %w", err)
	}
	return exists, nil
}

func (r *signatureRepository) RecordOccurrence(ctx context.Context, tenantID uuid.UUID, signature string, columns []string, at time.Time) (domain.SignatureHistory, error) {
	row := r.q.QueryRow(ctx,
		`INSERT INTO signature_history (tenant_id, signature, columns, first_seen_at, last_seen_at, occurrences)
		 VALUES ($1, $2, $3, $4, $4, 1)
		 ON CONFLICT (tenant_id, signature) DO UPDATE SET
			columns = EXCLUDED.columns,
			last_seen_at = EXCLUDED.last_seen_at,
			occurrences = signature_history.occurrences + 1
		 RETURNING tenant_id, signature, columns, first_seen_at, last_seen_at, occurrences`,
		tenantID, signature, columns, at.UTC(),
	)
	entry, err := scanSignature(row)
	if err != nil {
		return domain.SignatureHistory{}, fmt.Errorf("failed to record signature occurrence: %w", err)
	}
	return entry, nil
}

func scanSignature(row pgx.Row) (domain.SignatureHistory, error) {
	var entry domain.SignatureHistory
	err := row.Scan(&entry.TenantID, &entry.Signature, &entry.Columns, &entry.FirstSeenAt, &entry.LastSeenAt, &entry.Occurrences)
	return entry, err
}
