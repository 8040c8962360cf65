package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rpattn/custimport/internal/auth"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/session"
	"github.com/rpattn/custimport/internal/spreadsheet"
)

const kunderCSV = "Navn,Adresse,Postnr,Kategori\n" +
	"Ola Nordmann AS,Storgata 1,7010,El-Kontroll\n" +
	",Fjordveien 3,7011,Brannalarm\n" +
	"Kari Nordmann,Kirkegata 5,7012,elkontroll\n"

func preview(t *testing.T, f *fixture, tenant uuid.UUID, payload string) PreviewResult {
	t.Helper()
	result, err := f.service.Preview(context.Background(), PreviewRequest{
		TenantID: tenant,
		FileName: "kunder.csv",
		Payload:  []byte(payload),
	})
	if err != nil {
		t.Fatalf("preview returned error: %v", err)
	}
	return result
}

func TestPreviewStagesRowsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	result := preview(t, f, tenant, kunderCSV)

	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	if result.Rows[0].Status != domain.RowStatusValid {
		t.Fatalf("expected row 1 to be valid, got %s (%v)", result.Rows[0].Status, result.Rows[0].Issues)
	}

	missing := result.Rows[1]
	if missing.Status != domain.RowStatusError {
		t.Fatalf("expected row 2 to be an error, got %s", missing.Status)
	}
	if len(missing.Issues) != 1 || missing.Issues[0].Code != CodeMissingRequired || missing.Issues[0].Field != domain.FieldName {
		t.Fatalf("expected a single missing name issue, got %+v", missing.Issues)
	}

	kari := result.Rows[2]
	if kari.Status != domain.RowStatusValid {
		t.Fatalf("expected row 3 to be valid, got %s", kari.Status)
	}
	if kari.Mapped[domain.FieldCategory] != "El-Kontroll" {
		t.Fatalf("expected category El-Kontroll, got %q", kari.Mapped[domain.FieldCategory])
	}
	if match := kari.VocabularyMatches[domain.FieldCategory]; match.Type != domain.VocabularyNormalized {
		t.Fatalf("expected a normalized vocabulary match, got %s", match.Type)
	}

	if !result.RequiresRemapping {
		t.Fatalf("expected a first upload to require remapping")
	}
	if result.FormatChangeDetected {
		t.Fatalf("expected no format change for a tenant without history")
	}
	if result.Summary.Valid != 2 || result.Summary.Error != 1 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	count, err := f.store.Customers().Count(context.Background(), tenant)
	if err != nil {
		t.Fatalf("count returned error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected preview to write no customers, got %d", count)
	}

	batch, err := f.service.Batch(context.Background(), tenant, result.BatchID)
	if err != nil {
		t.Fatalf("batch lookup returned error: %v", err)
	}
	if batch.Status != domain.BatchMapping {
		t.Fatalf("expected batch to wait in mapping, got %s", batch.Status)
	}
}

func TestExecuteRequiresMappingConfirmation(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	result := preview(t, f, tenant, kunderCSV)

	_, err := f.service.Execute(context.Background(), ExecuteRequest{TenantID: tenant, SessionID: result.SessionID})
	if !errors.Is(err, domain.ErrRemappingRequired) {
		t.Fatalf("expected ErrRemappingRequired, got %v", err)
	}

	// the gated call leaves the session in place
	if _, err := f.sessions.Get(context.Background(), tenant, result.SessionID); err != nil {
		t.Fatalf("expected session to survive a gated execute: %v", err)
	}
}

func TestExecuteCommitsValidRowsAndConsumesSession(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	result := preview(t, f, tenant, kunderCSV)

	outcome, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      result.SessionID,
		ConfirmMapping: true,
		Geocode:        true,
	})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Status != domain.BatchCommitted {
		t.Fatalf("expected committed batch, got %s", outcome.Status)
	}
	if outcome.Created != 2 || outcome.Skipped != 1 || outcome.Failed != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if len(outcome.RowErrors) != 0 {
		t.Fatalf("expected no row errors, got %+v", outcome.RowErrors)
	}
	if !strings.HasPrefix(outcome.GeocodingNote, "2 customers") {
		t.Fatalf("unexpected geocoding note %q", outcome.GeocodingNote)
	}

	_, err = f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      result.SessionID,
		ConfirmMapping: true,
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected second execute to fail with ErrSessionNotFound, got %v", err)
	}

	count, err := f.store.Customers().Count(context.Background(), tenant)
	if err != nil {
		t.Fatalf("count returned error: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 customers, got %d", count)
	}

	audit, err := f.store.Audit().ListByBatch(context.Background(), tenant, result.BatchID)
	if err != nil {
		t.Fatalf("audit lookup returned error: %v", err)
	}
	if len(audit) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(audit))
	}
}

func TestExecuteReportsFailingRowAndKeepsTheRest(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	var b strings.Builder
	b.WriteString("Navn,Adresse,Postnr\n")
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("Kunde nummer %d", i)
		if i == 5 {
			name = strings.Repeat("Lang ", 50)
		}
		fmt.Fprintf(&b, "%s,Gate %d,%04d\n", name, i, 7000+i)
	}
	result := preview(t, f, tenant, b.String())
	if result.Summary.Valid != 10 {
		t.Fatalf("expected every row to stage as valid, got %+v", result.Summary)
	}

	outcome, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      result.SessionID,
		ConfirmMapping: true,
	})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Created != 9 || outcome.Failed != 1 {
		t.Fatalf("expected 9 created and 1 failed, got %+v", outcome)
	}
	if len(outcome.RowErrors) != 1 || outcome.RowErrors[0].Row != 6 {
		t.Fatalf("expected a single error for sheet row 6, got %+v", outcome.RowErrors)
	}

	count, err := f.store.Customers().Count(context.Background(), tenant)
	if err != nil {
		t.Fatalf("count returned error: %v", err)
	}
	if count != 9 {
		t.Fatalf("expected 9 customers, got %d", count)
	}

	logs, err := f.store.ImportLogs().List(context.Background(), tenant, &result.BatchID, 10, 0)
	if err != nil {
		t.Fatalf("import log lookup returned error: %v", err)
	}
	if len(logs) != 1 || logs[0].RowNumber == nil || *logs[0].RowNumber != 6 {
		t.Fatalf("expected one import log entry for row 6, got %+v", logs)
	}
}

func TestReuploadReusesSavedMapping(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	first := preview(t, f, tenant, kunderCSV)
	if _, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      first.SessionID,
		ConfirmMapping: true,
	}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	again := preview(t, f, tenant, "Kategori,Postnr,Navn,Adresse\nSprinkler,8006,Per Hansen,Sjøgata 9\n")
	if again.RequiresRemapping {
		t.Fatalf("expected a known layout in a new column order to skip remapping")
	}
	if again.Signature != first.Signature {
		t.Fatalf("expected signature to ignore column order")
	}

	renamed := preview(t, f, tenant, "Kundenavn,Adresse,Postnr,Kategori\nPer Hansen,Sjøgata 9,8006,Sprinkler\n")
	if !renamed.RequiresRemapping || !renamed.FormatChangeDetected {
		t.Fatalf("expected a renamed column to be flagged as a format change, got %+v", renamed)
	}
}

func TestPreviewWarnsAboutPreviouslyImportedFile(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	first := preview(t, f, tenant, kunderCSV)
	if _, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      first.SessionID,
		ConfirmMapping: true,
	}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	again := preview(t, f, tenant, kunderCSV)
	if len(again.Warnings) != 1 || !strings.Contains(again.Warnings[0], "already imported") {
		t.Fatalf("expected a previously imported warning, got %v", again.Warnings)
	}
	if again.Summary.Duplicate != 2 {
		t.Fatalf("expected committed rows to stage as duplicates, got %+v", again.Summary)
	}

	outcome, err := f.service.Execute(context.Background(), ExecuteRequest{TenantID: tenant, SessionID: again.SessionID})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Created != 0 || outcome.Updated != 0 || outcome.Skipped != 3 {
		t.Fatalf("expected unchanged duplicates to be skipped, got %+v", outcome)
	}
}

func TestExecuteUpdatesDuplicatesWithChanges(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	first := preview(t, f, tenant, "Navn,Adresse,Postnr,Poststed\nOla Nordmann AS,Storgata 1,7010,Oslo\n")
	if _, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      first.SessionID,
		ConfirmMapping: true,
	}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	second := preview(t, f, tenant, "Navn,Adresse,Postnr,Poststed\nOla Nordmann AS,Storgata 1,7010,Trondheim\n")
	if second.Rows[0].Status != domain.RowStatusDuplicate {
		t.Fatalf("expected duplicate, got %s", second.Rows[0].Status)
	}

	skipped, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:          tenant,
		SessionID:         second.SessionID,
		DuplicateStrategy: DuplicateSkip,
	})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if skipped.Skipped != 1 || skipped.Updated != 0 {
		t.Fatalf("expected skip strategy to leave the customer alone, got %+v", skipped)
	}

	third := preview(t, f, tenant, "Navn,Adresse,Postnr,Poststed\nOla Nordmann AS,Storgata 1,7010,Trondheim\n")
	updated, err := f.service.Execute(context.Background(), ExecuteRequest{TenantID: tenant, SessionID: third.SessionID})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if updated.Updated != 1 {
		t.Fatalf("expected one update, got %+v", updated)
	}

	audit, err := f.store.Audit().ListByBatch(context.Background(), tenant, third.BatchID)
	if err != nil {
		t.Fatalf("audit lookup returned error: %v", err)
	}
	if len(audit) != 1 || len(audit[0].Changes) != 1 || audit[0].Changes[0].After != "Trondheim" {
		t.Fatalf("expected audit entry with the city change, got %+v", audit)
	}
}

func TestExecuteAppliesCategoryOverridesAndLearnsAliases(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	first := preview(t, f, tenant, "Navn,Adresse,Kategori\nOla Nordmann AS,Storgata 1,Røykdykkerkurs\n")
	if match := first.Rows[0].VocabularyMatches[domain.FieldCategory]; match.Type != domain.VocabularyNone {
		t.Fatalf("expected an unmatched category, got %s", match.Type)
	}

	_, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:          tenant,
		SessionID:         first.SessionID,
		ConfirmMapping:    true,
		CategoryOverrides: map[string]string{"Røykdykkerkurs": "Ukjent"},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an unknown canonical, got %v", err)
	}

	outcome, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:          tenant,
		SessionID:         first.SessionID,
		ConfirmMapping:    true,
		CategoryOverrides: map[string]string{"Røykdykkerkurs": "Slukkeutstyr"},
	})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Rows[0].Mapped[domain.FieldCategory] != "Slukkeutstyr" {
		t.Fatalf("expected override to apply, got %q", outcome.Rows[0].Mapped[domain.FieldCategory])
	}

	second := preview(t, f, tenant, "Navn,Adresse,Kategori\nKari Nordmann,Kirkegata 5,røykdykkerkurs\n")
	match := second.Rows[0].VocabularyMatches[domain.FieldCategory]
	if match.Type != domain.VocabularyExact || match.Value != "Slukkeutstyr" {
		t.Fatalf("expected the learned alias to match exactly, got %+v", match)
	}
}

func TestConfirmMappingRestagesRows(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	result := preview(t, f, tenant, "Firma,Gatenavn\nOla Nordmann AS,Storgata 1\n")
	if result.Rows[0].Status != domain.RowStatusError {
		t.Fatalf("expected unmapped address to fail validation, got %s", result.Rows[0].Status)
	}

	confirmed, err := f.service.ConfirmMapping(context.Background(), ConfirmMappingRequest{
		TenantID:  tenant,
		SessionID: result.SessionID,
		Mapping:   map[string]domain.Field{"Gatenavn": domain.FieldAddress},
	})
	if err != nil {
		t.Fatalf("confirm mapping returned error: %v", err)
	}
	if confirmed.RequiresRemapping {
		t.Fatalf("expected confirmation to clear the remapping flag")
	}
	if confirmed.Rows[0].Status != domain.RowStatusValid {
		t.Fatalf("expected row to be valid after remapping, got %s (%v)", confirmed.Rows[0].Status, confirmed.Rows[0].Issues)
	}

	batch, err := f.service.Batch(context.Background(), tenant, result.BatchID)
	if err != nil {
		t.Fatalf("batch lookup returned error: %v", err)
	}
	if batch.Status != domain.BatchValidated {
		t.Fatalf("expected validated batch, got %s", batch.Status)
	}

	_, err = f.service.ConfirmMapping(context.Background(), ConfirmMappingRequest{
		TenantID:  tenant,
		SessionID: result.SessionID,
		Mapping:   map[string]domain.Field{"Telefon": domain.FieldPhone},
	})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for an unknown column, got %v", err)
	}
}

func TestCancelDropsSession(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	result := preview(t, f, tenant, kunderCSV)

	if err := f.service.Cancel(context.Background(), tenant, result.SessionID); err != nil {
		t.Fatalf("cancel returned error: %v", err)
	}
	if _, err := f.sessions.Get(context.Background(), tenant, result.SessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected session to be gone, got %v", err)
	}
	batch, err := f.service.Batch(context.Background(), tenant, result.BatchID)
	if err != nil {
		t.Fatalf("batch lookup returned error: %v", err)
	}
	if batch.Status != domain.BatchCancelled {
		t.Fatalf("expected cancelled batch, got %s", batch.Status)
	}
}

func TestServiceEnforcesTenantScope(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	result := preview(t, f, tenant, kunderCSV)

	ctx := auth.ContextWithTenantID(context.Background(), uuid.New())
	_, err := f.service.Execute(ctx, ExecuteRequest{TenantID: tenant, SessionID: result.SessionID, ConfirmMapping: true})
	if !errors.Is(err, auth.ErrTenantMismatch) {
		t.Fatalf("expected ErrTenantMismatch, got %v", err)
	}

	_, err = f.service.Execute(context.Background(), ExecuteRequest{TenantID: uuid.New(), SessionID: result.SessionID, ConfirmMapping: true})
	if !errors.Is(err, session.ErrSessionForbidden) {
		t.Fatalf("expected ErrSessionForbidden for another tenant's session, got %v", err)
	}

	if _, err := f.service.Preview(context.Background(), PreviewRequest{FileName: "kunder.csv", Payload: []byte(kunderCSV)}); !errors.Is(err, auth.ErrTenantRequired) {
		t.Fatalf("expected ErrTenantRequired, got %v", err)
	}
}

func TestPreviewMarksUnparseableUploadFailed(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	_, err := f.service.Preview(context.Background(), PreviewRequest{
		TenantID: tenant,
		FileName: "kunder.pdf",
		Payload:  []byte("%PDF-1.4 binary"),
	})
	if !errors.Is(err, spreadsheet.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

// consumingStore takes the session right after handing it out, the way an Execute
// running between ConfirmMapping's read and write would.
type consumingStore struct {
	*session.MemoryStore
}

func (s consumingStore) Get(ctx context.Context, tenantID, id uuid.UUID) (session.Session, error) {
	sess, err := s.MemoryStore.Get(ctx, tenantID, id)
	if err == nil {
		_, _ = s.MemoryStore.Take(ctx, tenantID, id)
	}
	return sess, err
}

func TestConfirmMappingDoesNotResurrectConsumedSession(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	result := preview(t, f, tenant, "Firma,Gatenavn\nOla Nordmann AS,Storgata 1\n")

	logger, _ := test.NewNullLogger()
	racing := NewService(f.store, consumingStore{f.sessions}, Options{}, logger)

	_, err := racing.ConfirmMapping(context.Background(), ConfirmMappingRequest{
		TenantID:  tenant,
		SessionID: result.SessionID,
		Mapping:   map[string]domain.Field{"Gatenavn": domain.FieldAddress},
	})
	if !errors.Is(err, session.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if f.sessions.Len() != 0 {
		t.Fatalf("expected the consumed session to stay gone, found %d", f.sessions.Len())
	}

	batch, err := f.service.Batch(context.Background(), tenant, result.BatchID)
	if err != nil {
		t.Fatalf("batch lookup returned error: %v", err)
	}
	if batch.Status == domain.BatchValidated {
		t.Fatalf("expected the batch to be left alone, got %s", batch.Status)
	}
}

func TestExecuteKeepsSecondSiteOnSameStreetSeparate(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()

	first := preview(t, f, tenant, "Navn,Adresse,Postnr\nOla Nordmann AS,Storgata 1,7010\n")
	if _, err := f.service.Execute(context.Background(), ExecuteRequest{
		TenantID:       tenant,
		SessionID:      first.SessionID,
		ConfirmMapping: true,
	}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	second := preview(t, f, tenant, "Navn,Adresse,Postnr\nOla Nordmann AS,Storgata 3,7010\nOla Nordmann AS,Storgata 1B,7010\n")
	for _, row := range second.Rows {
		if row.Status == domain.RowStatusDuplicate {
			t.Fatalf("row %d: expected a new site, got duplicate of %+v", row.RowNumber, row.Duplicate)
		}
	}
	outcome, err := f.service.Execute(context.Background(), ExecuteRequest{TenantID: tenant, SessionID: second.SessionID})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Created != 2 || outcome.Updated != 0 {
		t.Fatalf("expected two new sites, got %+v", outcome)
	}

	customers, err := f.store.Customers().List(context.Background(), tenant, 10, 0)
	if err != nil {
		t.Fatalf("list returned error: %v", err)
	}
	addresses := make([]string, 0, len(customers))
	for _, c := range customers {
		addresses = append(addresses, c.Address)
	}
	sort.Strings(addresses)
	if got := strings.Join(addresses, "|"); got != "Storgata 1|Storgata 1B|Storgata 3" {
		t.Fatalf("unexpected stored addresses %q", got)
	}
}

func TestExecuteFindsIdenticalCustomerInBusyPostalCode(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	ctx := context.Background()

	ola := domain.NewCustomer(tenant, map[domain.Field]string{
		domain.FieldName:       "Ola Nordmann AS",
		domain.FieldAddress:    "Storgata 1",
		domain.FieldPostalCode: "7010",
	})
	ola.UpdatedAt = ola.UpdatedAt.Add(-24 * time.Hour)
	if _, err := f.store.Customers().Create(ctx, ola); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	for i := 0; i < 60; i++ {
		neighbour := domain.NewCustomer(tenant, map[domain.Field]string{
			domain.FieldName:       fmt.Sprintf("Nabo %d AS", i),
			domain.FieldAddress:    fmt.Sprintf("Kongens gate %d", i+1),
			domain.FieldPostalCode: "7010",
		})
		if _, err := f.store.Customers().Create(ctx, neighbour); err != nil {
			t.Fatalf("create returned error: %v", err)
		}
	}

	result := preview(t, f, tenant, "Navn,Adresse,Postnr\nOla Nordmann AS,Storgata 1,7010\n")
	row := result.Rows[0]
	if row.Status != domain.RowStatusDuplicate || row.Duplicate == nil || row.Duplicate.CustomerID != ola.ID {
		t.Fatalf("expected a duplicate of %s, got %s %+v", ola.ID, row.Status, row.Duplicate)
	}

	outcome, err := f.service.Execute(ctx, ExecuteRequest{TenantID: tenant, SessionID: result.SessionID, ConfirmMapping: true})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Created != 0 {
		t.Fatalf("expected no new customer, got %+v", outcome)
	}
	if count, err := f.store.Customers().Count(ctx, tenant); err != nil || count != 61 {
		t.Fatalf("expected 61 customers, got %d (%v)", count, err)
	}
}

func TestExecuteSkipsRowWhoseOnlyDifferenceIsAnUnreadableDate(t *testing.T) {
	f := newFixture(t)
	tenant := uuid.New()
	ctx := context.Background()

	first := preview(t, f, tenant, "Navn,Adresse,Postnr,Neste kontroll\nOla Nordmann AS,Storgata 1,7010,2025-01-01\n")
	if _, err := f.service.Execute(ctx, ExecuteRequest{TenantID: tenant, SessionID: first.SessionID, ConfirmMapping: true}); err != nil {
		t.Fatalf("execute returned error: %v", err)
	}

	second := preview(t, f, tenant, "Navn,Adresse,Postnr,Neste kontroll\nOla Nordmann AS,Storgata 1,7010,neste uke\n")
	outcome, err := f.service.Execute(ctx, ExecuteRequest{TenantID: tenant, SessionID: second.SessionID})
	if err != nil {
		t.Fatalf("execute returned error: %v", err)
	}
	if outcome.Updated != 0 || outcome.Skipped != 1 {
		t.Fatalf("expected the row to be skipped, got %+v", outcome)
	}

	audit, err := f.store.Audit().ListByBatch(ctx, tenant, second.BatchID)
	if err != nil {
		t.Fatalf("audit lookup returned error: %v", err)
	}
	if len(audit) != 0 {
		t.Fatalf("expected no audit entries, got %+v", audit)
	}
}
