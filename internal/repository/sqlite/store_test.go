package sqlite

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/textsim"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCustomerRoundTripAndLookups(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	ola := domain.NewCustomer(tenant, map[domain.Field]string{
		domain.FieldName:            "Ola Nordmann AS",
		domain.FieldAddress:         "Storgata 1",
		domain.FieldPostalCode:      "7010",
		domain.FieldExternalRef:     "CRM-001",
		domain.FieldLastServiceDate: "2024-03-01",
	})
	created, err := store.Customers().Create(ctx, ola)
	require.NoError(t, err)
	require.Equal(t, ola.ID, created.ID)
	require.NotNil(t, created.LastServiceDate)
	require.Equal(t, "2024-03-01", created.LastServiceDate.Format(domain.DateLayout))

	byRef, err := store.Customers().ListByExternalRefs(ctx, tenant, []string{"crm-001", "missing"})
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	require.Equal(t, ola.ID, byRef[0].ID)

	byName, err := store.Customers().FindDuplicateCandidates(ctx, tenant, domain.DuplicateQuery{NameKey: textsim.Key("ola nordmann as")})
	require.NoError(t, err)
	require.Len(t, byName, 1)

	byPostal, err := store.Customers().FindDuplicateCandidates(ctx, tenant, domain.DuplicateQuery{PostalCode: "7010"})
	require.NoError(t, err)
	require.Len(t, byPostal, 1)

	none, err := store.Customers().FindDuplicateCandidates(ctx, uuid.New(), domain.DuplicateQuery{PostalCode: "7010"})
	require.NoError(t, err)
	require.Empty(t, none)

	updated := created.WithValues(map[domain.Field]string{domain.FieldCity: "Trondheim"})
	updated.UpdatedAt = time.Now().UTC()
	updated, err = store.Customers().Update(ctx, updated)
	require.NoError(t, err)
	require.Equal(t, "Trondheim", updated.City)

	count, err := store.Customers().Count(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	_, err = store.Customers().GetByID(ctx, tenant, uuid.New())
	require.True(t, errors.Is(err, repository.ErrNotFound))
}

func TestSavepointRollsBackOnlyFailingRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	var rowErrors int
	err := store.InTx(ctx, func(tx repository.Tx) error {
		for i := 1; i <= 10; i++ {
			name := "Kunde " + strings.Repeat("x", i)
			if i == 5 {
				name = strings.Repeat("n", 300)
			}
			rowErr := tx.InSavepoint(ctx, func(sp repository.Tx) error {
				_, err := sp.Customers().Create(ctx, domain.NewCustomer(tenant, map[domain.Field]string{
					domain.FieldName:    name,
					domain.FieldAddress: "Storgata 1",
				}))
				return err
			})
			if rowErr != nil {
				rowErrors++
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, rowErrors)

	count, err := store.Customers().Count(ctx, tenant)
	require.NoError(t, err)
	require.Equal(t, 9, count)
}

func TestInTxRollsBackEverythingOnError(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Customers().Create(ctx, domain.NewCustomer(tenant, map[domain.Field]string{
			domain.FieldName:    "Kari Nordmann",
			domain.FieldAddress: "Storgata 3",
		}))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := store.Customers().Count(ctx, tenant)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestProfilesKeepSingleDefaultPerSignature(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	first := domain.MappingProfile{
		ID:              uuid.New(),
		TenantID:        tenant,
		Name:            "first",
		ColumnSignature: "sig",
		SourceColumns:   []string{"Navn"},
		Mapping:         map[string]domain.Field{"Navn": domain.FieldName},
		IsDefault:       true,
	}
	_, err := store.Profiles().Save(ctx, first)
	require.NoError(t, err)

	second := first
	second.ID = uuid.New()
	second.Name = "second"
	second.Confirmed = true
	_, err = store.Profiles().Save(ctx, second)
	require.NoError(t, err)

	got, err := store.Profiles().GetDefault(ctx, tenant, "sig")
	require.NoError(t, err)
	require.Equal(t, second.ID, got.ID)
	require.True(t, got.Confirmed)
	require.Equal(t, domain.FieldName, got.Mapping["Navn"])

	require.NoError(t, store.Profiles().MarkUsed(ctx, tenant, second.ID, time.Now()))
	got, err = store.Profiles().GetDefault(ctx, tenant, "sig")
	require.NoError(t, err)
	require.Equal(t, 1, got.UsageCount)
	require.NotNil(t, got.LastUsedAt)

	all, err := store.Profiles().List(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = store.Profiles().GetDefault(ctx, tenant, "other")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSignatureHistoryCountsOccurrences(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	has, err := store.Signatures().HasAny(ctx, tenant)
	require.NoError(t, err)
	require.False(t, has)

	_, err = store.Signatures().RecordOccurrence(ctx, tenant, "sig", []string{"Navn", "Adresse"}, time.Now())
	require.NoError(t, err)
	entry, err := store.Signatures().RecordOccurrence(ctx, tenant, "sig", []string{"Navn", "Adresse"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, entry.Occurrences)
	require.Equal(t, []string{"Navn", "Adresse"}, entry.Columns)

	has, err = store.Signatures().HasAny(ctx, tenant)
	require.NoError(t, err)
	require.True(t, has)
}

func TestBatchLifecycleAndAudit(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	batch := domain.NewImportBatch(tenant, "kunder.csv", 42, "hash")
	batch, err := store.Batches().Create(ctx, batch)
	require.NoError(t, err)

	_, err = store.Batches().FindCommittedByHash(ctx, tenant, "hash")
	require.ErrorIs(t, err, repository.ErrNotFound)

	batch, err = batch.Advance(domain.BatchCommitted)
	require.NoError(t, err)
	batch = batch.WithRows([]domain.StagingRow{{Status: domain.RowStatusValid, FinalAction: domain.ActionCreated, Completeness: 0.5}})
	_, err = store.Batches().Update(ctx, batch)
	require.NoError(t, err)

	found, err := store.Batches().FindCommittedByHash(ctx, tenant, "hash")
	require.NoError(t, err)
	require.Equal(t, batch.ID, found.ID)
	require.Equal(t, 1, found.Summary.Created)
	require.NotNil(t, found.CommittedAt)

	entry := domain.AuditEntry{
		ID:         uuid.New(),
		TenantID:   tenant,
		BatchID:    batch.ID,
		CustomerID: uuid.New(),
		Action:     domain.ActionUpdated,
		RowNumber:  2,
		Changes:    []domain.Change{{Field: domain.FieldCity, Before: "Oslo", After: "Bergen"}},
		CreatedAt:  time.Now(),
	}
	require.NoError(t, store.Audit().Record(ctx, entry))
	entries, err := store.Audit().ListByBatch(ctx, tenant, batch.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, entry.Changes, entries[0].Changes)

	row := 4
	require.NoError(t, store.ImportLogs().Record(ctx, domain.ImportLogEntry{
		TenantID:     tenant,
		BatchID:      &batch.ID,
		FileName:     "kunder.csv",
		RowNumber:    &row,
		ErrorMessage: "row 4: failed",
	}))
	logs, err := store.ImportLogs().List(ctx, tenant, &batch.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, 4, *logs[0].RowNumber)

	logs, err = store.ImportLogs().List(ctx, tenant, nil, 10, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestAliasUpsertIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	require.NoError(t, store.Aliases().Upsert(ctx, domain.VocabularyAlias{TenantID: tenant, Kind: "category", Alias: "Brannsjekk", Canonical: "Brann"}))
	require.NoError(t, store.Aliases().Upsert(ctx, domain.VocabularyAlias{TenantID: tenant, Kind: "category", Alias: "brannsjekk", Canonical: "El-Kontroll"}))

	aliases, err := store.Aliases().List(ctx, tenant)
	require.NoError(t, err)
	require.Len(t, aliases, 1)
	require.Equal(t, "El-Kontroll", aliases[0].Canonical)
}

func TestDuplicateCandidatesRankNameMatchesBeforeLimit(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	tenant := uuid.New()

	ola := domain.NewCustomer(tenant, map[domain.Field]string{
		domain.FieldName:       "Ola Nordmann AS",
		domain.FieldAddress:    "Storgata 1",
		domain.FieldPostalCode: "7010",
	})
	ola.UpdatedAt = ola.UpdatedAt.Add(-24 * time.Hour)
	_, err := store.Customers().Create(ctx, ola)
	require.NoError(t, err)

	for i := 0; i < 60; i++ {
		_, err := store.Customers().Create(ctx, domain.NewCustomer(tenant, map[domain.Field]string{
			domain.FieldName:       "Nabo " + strings.Repeat("x", i+1),
			domain.FieldAddress:    "Kongens gate 2",
			domain.FieldPostalCode: "7010",
		}))
		require.NoError(t, err)
	}

	candidates, err := store.Customers().FindDuplicateCandidates(ctx, tenant, domain.DuplicateQuery{
		NameKey:    textsim.Key("Ola Nordmann AS"),
		PostalCode: "7010",
		Limit:      50,
	})
	require.NoError(t, err)
	require.Len(t, candidates, 50)
	require.Equal(t, ola.ID, candidates[0].ID)
}
