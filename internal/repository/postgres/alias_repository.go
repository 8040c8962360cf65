package postgres

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
	if _, err := r.q.Exec(ctx,
		`INSERT INTO vocabulary_aliases (id, tenant_id, kind, alias, alias_key, canonical, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, kind, alias_key) DO UPDATE SET canonical = EXCLUDED.canonical`,
		alias.ID, alias.TenantID, alias.Kind, alias.Alias, strings.ToLower(strings.TrimSpace(alias.Alias)), alias.Canonical, alias.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert vocabulary alias: %w", err)
	}
	return nil
}

func (r *aliasRepository) List(ctx context.Context, tenantID uuid.UUID) ([]domain.VocabularyAlias, error) {
	rows, err := r.q.Query(ctx,
		`SELECT id, tenant_id, kind, alias, canonical, created_at
		 FROM vocabulary_aliases WHERE tenant_id = $1 ORDER BY kind, alias_key`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vocabulary aliases: %w", err)
	}
	defer rows.Close()

	aliases := []domain.VocabularyAlias{}
	for rows.Next() {
		var alias domain.VocabularyAlias
		if err := rows.Scan(&alias.ID, &alias.TenantID, &alias.Kind, &alias.Alias, &alias.Canonical, &alias.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vocabulary alias: %w", err)
		}
		aliases = append(aliases, alias)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vocabulary aliases: %w", err)
	}
	return aliases, nil
}
