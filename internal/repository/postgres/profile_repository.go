package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
)

const profileColumns = `id, tenant_id, name, column_signature, source_columns, mapping, confirmed,
	is_default, usage_count, last_used_at, created_at, updated_at`

type profileRepository struct {
	q querier
}

func (r *profileRepository) GetDefault(ctx context.Context, tenantID uuid.UUID, signature string) (domain.MappingProfile, error) {
	row := r.q.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM mapping_profiles
		 WHERE tenant_id = $1 AND column_signature = $2 AND is_default
		 ORDER BY updated_at DESC LIMIT 1`,
		tenantID, signature,
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MappingProfile{}, repository.ErrNotFound
		}
		return domain.MappingProfile{}, fmt.Errorf("failed to get mapping profile: %w", err)
	}
	return profile, nil
}

// Save upserts the profile. A default profile demotes any other default for the same signature.
func (r *profileRepository) Save(ctx context.Context, p domain.MappingProfile) (domain.MappingProfile, error) {
	mapping, err := json.Marshal(p.Mapping)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to encode mapping: %w", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	if p.IsDefault {
		if _, err := r.q.Exec(ctx,
			`UPDATE mapping_profiles SET is_default = FALSE
			 WHERE tenant_id = $1 AND column_signature = $2 AND id <> $3`,
			p.TenantID, p.ColumnSignature, p.ID,
		); err != nil {
			return domain.MappingProfile{}, fmt.Errorf("failed to demote mapping profiles: %w", err)
		}
	}

	row := r.q.QueryRow(ctx,
		`INSERT INTO mapping_profiles (id, tenant_id, name, column_signature, source_columns, mapping,
			confirmed, is_default, usage_count, last_used_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			column_signature = EXCLUDED.column_signature,
			source_columns = EXCLUDED.source_columns,
			mapping = EXCLUDED.mapping,
			confirmed = EXCLUDED.confirmed,
			is_default = EXCLUDED.is_default,
			updated_at = EXCLUDED.updated_at
		 RETURNING `+profileColumns,
		p.ID, p.TenantID, p.Name, p.ColumnSignature, p.SourceColumns, mapping,
		p.Confirmed, p.IsDefault, p.UsageCount, p.LastUsedAt, p.CreatedAt, p.UpdatedAt,
	)
	saved, err := scanProfile(row)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to save mapping profile: %w", err)
	}
	return saved, nil
}

func (r *profileRepository) MarkUsed(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE mapping_profiles SET usage_count = usage_count + 1, last_used_at = $3, updated_at = $3
		 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark mapping profile used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *profileRepository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.MappingProfile, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+profileColumns+` FROM mapping_profiles WHERE tenant_id = $1 ORDER BY updated_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list mapping profiles: %w", err)
	}
	defer rows.Close()

	profiles := []domain.MappingProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mapping profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mapping profiles: %w", err)
	}
	return profiles, nil
}

func scanProfile(row pgx.Row) (domain.MappingProfile, error) {
	var (
		p       domain.MappingProfile
		mapping []byte
	)
	if err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.ColumnSignature, &p.SourceColumns, &mapping, &p.Confirmed,
		&p.IsDefault, &p.UsageCount, &p.LastUsedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return domain.MappingProfile{}, err
	}
	if err := json.Unmarshal(mapping, &p.Mapping); err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to decode mapping: %w", err)
	}
	return p, nil
}
