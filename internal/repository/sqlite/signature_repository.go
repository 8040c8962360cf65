package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
)

type signatureRepository struct {
	q querier
}

func (r *signatureRepository) Get(ctx context.Context, tenantID uuid.UUID, signature string) (domain.SignatureHistory, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT tenant_id, signature, columns, first_seen_at, last_seen_at, occurrences
		 FROM signature_history WHERE tenant_id = ? AND signature = ?`,
		tenantID.String(), signature,
	)
	entry, err := scanSignature(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SignatureHistory{}, repository.ErrNotFound
		}
		return domain.SignatureHistory{}, fmt.Errorf("failed to get signature history: %w", err)
	}
	return entry, nil
}

func (r *signatureRepository) HasAny(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	var exists bool
	if err := r.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM signature_history WHERE tenant_id = ?)`, tenantID.String(),
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check signature history: %w", err)
	}
	return exists, nil
}

func (r *signatureRepository) RecordOccurrence(ctx context.Context, tenantID uuid.UUID, signature string, columns []string, at time.Time) (domain.SignatureHistory, error) {
	encoded, err := json.Marshal(columns)
	if err != nil {
		return domain.SignatureHistory{}, fmt.Errorf("failed to encode columns: %w", err)
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO signature_history (tenant_id, signature, columns, first_seen_at, last_seen_at, occurrences)
		 VALUES (?, ?, ?, ?, ?, 1)
		 ON CONFLICT (tenant_id, signature) DO UPDATE SET
			columns = excluded.columns,
			last_seen_at = excluded.last_seen_at,
			occurrences = signature_history.occurrences + 1`,
		tenantID.String(), signature, string(encoded), formatTime(at), formatTime(at),
	); err != nil {
		return domain.SignatureHistory{}, fmt.Errorf("failed to record signature occurrence: %w", err)
	}
	return r.Get(ctx, tenantID, signature)
}

func scanSignature(row scanner) (domain.SignatureHistory, error) {
	var (
		entry               domain.SignatureHistory
		tenantID, columns   string
		firstSeen, lastSeen string
	)
	if err := row.Scan(&tenantID, &entry.Signature, &columns, &firstSeen, &lastSeen, &entry.Occurrences); err != nil {
		return domain.SignatureHistory{}, err
	}
	var err error
	if entry.TenantID, err = uuid.Parse(tenantID); err != nil {
		return domain.SignatureHistory{}, err
	}
	if err := json.Unmarshal([]byte(columns), &entry.Columns); err != nil {
		return domain.SignatureHistory{}, fmt.Errorf("failed to decode columns: %w", err)
	}
	if entry.FirstSeenAt, err = parseTime(firstSeen); err != nil {
		return domain.SignatureHistory{}, err
	}
	if entry.LastSeenAt, err = parseTime(lastSeen); err != nil {
		return domain.SignatureHistory{}, err
	}
	return entry, nil
}
