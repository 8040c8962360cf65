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

const profileColumns = `id, tenant_id, name, column_signature, source_columns, mapping, confirmed,
	is_default, usage_count, last_used_at, created_at, updated_at`

type profileRepository struct {
	q querier
}

func (r *profileRepository) GetDefault(ctx context.Context, tenantID uuid.UUID, signature string) (domain.MappingProfile, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM mapping_profiles
		 WHERE tenant_id = ? AND column_signature = ? AND is_default = 1
		 ORDER BY updated_at DESC LIMIT 1`,
		tenantID.String(), signature,
	)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.MappingProfile{}, repository.ErrNotFound
		}
		return domain.MappingProfile{}, fmt.Errorf("failed to get mapping profile: %w", err)
	}
	return profile, nil
}

func (r *profileRepository) Save(ctx context.Context, p domain.MappingProfile) (domain.MappingProfile, error) {
	mapping, err := json.Marshal(p.Mapping)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to encode mapping: %w", err)
	}
	columns, err := json.Marshal(p.SourceColumns)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to encode source columns: %w", err)
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	if p.IsDefault {
		if _, err := r.q.ExecContext(ctx,
			`UPDATE mapping_profiles SET is_default = 0
			 WHERE tenant_id = ? AND column_signature = ? AND id <> ?`,
			p.TenantID.String(), p.ColumnSignature, p.ID.String(),
		); err != nil {
			return domain.MappingProfile{}, fmt.Errorf("failed to demote mapping profiles: %w", err)
		}
	}

	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO mapping_profiles (id, tenant_id, name, column_signature, source_columns, mapping,
			confirmed, is_default, usage_count, last_used_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			column_signature = excluded.column_signature,
			source_columns = excluded.source_columns,
			mapping = excluded.mapping,
			confirmed = excluded.confirmed,
			is_default = excluded.is_default,
			updated_at = excluded.updated_at`,
		p.ID.String(), p.TenantID.String(), p.Name, p.ColumnSignature, string(columns), string(mapping),
		p.Confirmed, p.IsDefault, p.UsageCount, formatTimePtr(p.LastUsedAt, timeLayout),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	); err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to save mapping profile: %w", err)
	}

	row := r.q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM mapping_profiles WHERE id = ?`, p.ID.String())
	saved, err := scanProfile(row)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to reload mapping profile: %w", err)
	}
	return saved, nil
}

func (r *profileRepository) MarkUsed(ctx context.Context, tenantID, id uuid.UUID, at time.Time) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE mapping_profiles SET usage_count = usage_count + 1, last_used_at = ?, updated_at = ?
		 WHERE tenant_id = ? AND id = ?`,
		formatTime(at), formatTime(at), tenantID.String(), id.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to mark mapping profile used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *profileRepository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.MappingProfile, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM mapping_profiles WHERE tenant_id = ? ORDER BY updated_at DESC`,
		tenantID.String(),
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

func scanProfile(row scanner) (domain.MappingProfile, error) {
	var (
		p                  domain.MappingProfile
		id, tenantID       string
		columns, mapping   string
		lastUsed           sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(
		&id, &tenantID, &p.Name, &p.ColumnSignature, &columns, &mapping, &p.Confirmed,
		&p.IsDefault, &p.UsageCount, &lastUsed, &createdAt, &updated,
	); err != nil {
		return domain.MappingProfile{}, err
	}

	var err error
	if p.ID, err = uuid.Parse(id); err != nil {
		return domain.MappingProfile{}, err
	}
	if p.TenantID, err = uuid.Parse(tenantID); err != nil {
		return domain.MappingProfile{}, err
	}
	if err := json.Unmarshal([]byte(columns), &p.SourceColumns); err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to decode source columns: %w", err)
	}
	if err := json.Unmarshal([]byte(mapping), &p.Mapping); err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to decode mapping: %w", err)
	}
	if p.LastUsedAt, err = parseTimePtr(lastUsed, timeLayout); err != nil {
		return domain.MappingProfile{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.MappingProfile{}, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return domain.MappingProfile{}, err
	}
	return p, nil
}
