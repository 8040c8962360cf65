package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
)

type aliasRepository struct {
	q querier
}

func (r *aliasRepository) Upsert(ctx context.Context, alias domain.VocabularyAlias) error {
	if alias.ID == uuid.Nil {
		alias.ID = uuid.New()
	}
	if alias.CreatedAt.IsZero() {
		alias.CreatedAt = time.Now().UTC()
	}
	if _, err := r.q.ExecContext(ctx,
		`INSERT INTO vocabulary_aliases (id, tenant_id, kind, alias, alias_key, canonical, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind, alias_key) DO UPDATE SET canonical = excluded.canonical`,
		alias.ID.String(), alias.TenantID.String(), alias.Kind, alias.Alias,
		strings.ToLower(strings.TrimSpace(alias.Alias)), alias.Canonical, formatTime(alias.CreatedAt),
	); err != nil {
		return fmt.Errorf("failed to upsert vocabulary alias: %w", err)
	}
	return nil
}

func (r *aliasRepository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.VocabularyAlias, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, tenant_id, kind, alias, canonical, created_at
		 FROM vocabulary_aliases WHERE tenant_id = ? ORDER BY kind, alias_key`,
		tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabulary aliases: %w", err)
	}
	defer rows.Close()

	aliases := []domain.VocabularyAlias{}
	for rows.Next() {
		var (
			alias             domain.VocabularyAlias
			id, tenant, added string
		)
		if err := rows.Scan(&id, &tenant, &alias.Kind, &alias.Alias, &alias.Canonical, &added); err != nil {
			return nil, fmt.Errorf("failed to scan vocabulary alias: %w", err)
		}
		if alias.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if alias.TenantID, err = uuid.Parse(tenant); err != nil {
			return nil, err
		}
		if alias.CreatedAt, err = parseTime(added); err != nil {
			return nil, err
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vocabulary aliases: %w", err)
	}
	return aliases, nil
}
