package mapping

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
	schemavalidator "github.com/rpattn/custimport/internal/schema/validator"
)

type stubProfileRepo struct {
	profiles map[string]domain.MappingProfile
}

var _ repository.MappingProfileRepository = (*stubProfileRepo)(nil)

func (s *stubProfileRepo) GetDefault(_ context.Context, tenantID uuid.UUID, signature string) (domain.MappingProfile, error) {
	profile, ok := s.profiles[tenantID.String()+signature]
	if !ok {
		return domain.MappingProfile{}, repository.ErrNotFound
	}
	return profile, nil
}

func (s *stubProfileRepo) Save(_ context.Context, profile domain.MappingProfile) (domain.MappingProfile, error) {
	if s.profiles == nil {
		s.profiles = map[string]domain.MappingProfile{}
	}
	s.profiles[profile.TenantID.String()+profile.ColumnSignature] = profile
	return profile, nil
}

func (s *stubProfileRepo) MarkUsed(context.Context, uuid.UUID, uuid.UUID, time.Time) error {
	return nil
}

func (s *stubProfileRepo) List(context.Context, uuid.UUID) ([]domain.MappingProfile, error) {
	return nil, nil
}

type stubHistoryRepo struct {
	entries map[string]domain.SignatureHistory
}

var _ repository.SignatureHistoryRepository = (*stubHistoryRepo)(nil)

func (s *stubHistoryRepo) Get(_ context.Context, tenantID uuid.UUID, signature string) (domain.SignatureHistory, error) {
	entry, ok := s.entries[tenantID.String()+signature]
	if !ok {
		return domain.SignatureHistory{}, repository.ErrNotFound
	}
	return entry, nil
}

func (s *stubHistoryRepo) HasAny(_ context.Context, tenantID uuid.UUID) (bool, error) {
	for _, entry := range s.entries {
		if entry.TenantID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubHistoryRepo) RecordOccurrence(_ context.Context, tenantID uuid.UUID, signature string, columns []string, at time.Time) (domain.SignatureHistory, error) {
	if s.entries == nil {
		s.entries = map[string]domain.SignatureHistory{}
	}
	entry := s.entries[tenantID.String()+signature]
	entry.TenantID = tenantID
	entry.Signature = signature
	entry.Columns = columns
	entry.Occurrences++
	entry.LastSeenAt = at
	s.entries[tenantID.String()+signature] = entry
	return entry, nil
}

func TestNormalizeHeader(t *testing.T) {
	require.Equal(t, "post nr", NormalizeHeader("  Post_Nr. "))
	require.Equal(t, "e post", NormalizeHeader("E-Post"))
	require.Equal(t, "kunde navn", NormalizeHeader("Kunde   navn"))
}

func TestSignatureIsOrderInsensitiveButNameSensitive(t *testing.T) {
	base := Signature([]string{"Navn", "Adresse", "Kategori"})

	require.Equal(t, base, Signature([]string{"kategori", "ADRESSE", "navn"}))
	require.Equal(t, base, Signature([]string{"Navn", "Adresse", "Kategori", "navn"}))
	require.NotEqual(t, base, Signature([]string{"Navn", "Adresse"}))
	require.NotEqual(t, base, Signature([]string{"Navn", "Adresse", "Kategori", "Telefon"}))
	require.NotEqual(t, base, Signature([]string{"Kundenavn", "Adresse", "Kategori"}))
}

func TestSuggestUsesSynonymsAndClaimsTargetsOnce(t *testing.T) {
	m := NewMapper(nil, nil)

	res := m.Suggest([]string{"Navn", "Adresse", "Post nr", "E-post", "Kundenavn", "Skostørrelse"})

	require.Equal(t, domain.FieldName, res.Columns[0].Target)
	require.Equal(t, SourceSynonym, res.Columns[0].Source)
	require.Equal(t, 1.0, res.Columns[0].Confidence)
	require.Equal(t, domain.FieldAddress, res.Columns[1].Target)
	require.Equal(t, domain.FieldPostalCode, res.Columns[2].Target)
	require.Equal(t, domain.FieldEmail, res.Columns[3].Target)
	require.Empty(t, res.Columns[4].Target)
	require.Equal(t, []string{"Kundenavn", "Skostørrelse"}, res.Unmapped)
	require.Len(t, res.Issues, 1)
	require.Equal(t, CodeDuplicateTarget, res.Issues[0].Code)
}

func TestResolveRequiresRemappingForUnknownLayout(t *testing.T) {
	tenant := uuid.New()
	history := &stubHistoryRepo{}
	m := NewMapper(&stubProfileRepo{}, history)
	ctx := context.Background()

	res, err := m.Resolve(ctx, tenant, []string{"Navn", "Adresse"})
	require.NoError(t, err)
	require.True(t, res.RequiresRemapping)
	require.False(t, res.FormatChangeDetected)

	_, err = history.RecordOccurrence(ctx, tenant, res.Signature, res.Headers(), time.Now())
	require.NoError(t, err)

	res, err = m.Resolve(ctx, tenant, []string{"Adresse", "Navn"})
	require.NoError(t, err)
	require.False(t, res.RequiresRemapping)
	require.NotNil(t, res.History)

	res, err = m.Resolve(ctx, tenant, []string{"Navn", "Gateadresse"})
	require.NoError(t, err)
	require.True(t, res.RequiresRemapping)
	require.True(t, res.FormatChangeDetected)
}

func TestResolveAppliesSavedProfile(t *testing.T) {
	tenant := uuid.New()
	profiles := &stubProfileRepo{}
	m := NewMapper(profiles, &stubHistoryRepo{})
	ctx := context.Background()
	headers := []string{"Kunde", "Gate", "Felt 7"}

	profile, err := NewProfile(tenant, "ERP export", headers, map[string]domain.Field{
		"Kunde":  domain.FieldName,
		"Gate":   domain.FieldAddress,
		"Felt 7": domain.FieldCategory,
	}, true)
	require.NoError(t, err)
	_, err = profiles.Save(ctx, profile)
	require.NoError(t, err)

	res, err := m.Resolve(ctx, tenant, headers)
	require.NoError(t, err)
	require.False(t, res.RequiresRemapping)
	require.NotNil(t, res.Profile)
	require.Equal(t, domain.FieldCategory, res.Columns[2].Target)
	require.Equal(t, SourceProfile, res.Columns[2].Source)
	require.Empty(t, res.Unmapped)

	res, err = m.Resolve(ctx, tenant, []string{"Kunde", "Gate", "Felt 8"})
	require.NoError(t, err)
	require.True(t, res.RequiresRemapping)
	require.Nil(t, res.Profile)
}

func TestApplyOverrides(t *testing.T) {
	m := NewMapper(nil, nil)
	res := m.Suggest([]string{"Navn", "Adresse", "Felt 7"})

	updated, err := ApplyOverrides(res, map[string]domain.Field{"Felt 7": domain.FieldCategory})
	require.NoError(t, err)
	require.Equal(t, domain.FieldCategory, updated.Columns[2].Target)
	require.Equal(t, SourceUser, updated.Columns[2].Source)
	require.Empty(t, updated.Unmapped)
	require.Empty(t, res.Columns[2].Target, "original resolution must not change")

	moved, err := ApplyOverrides(res, map[string]domain.Field{"Felt 7": domain.FieldName})
	require.NoError(t, err)
	require.Equal(t, domain.FieldName, moved.Columns[2].Target)
	require.Empty(t, moved.Columns[0].Target)

	_, err = ApplyOverrides(res, map[string]domain.Field{"Felt 7": "shoe_size"})
	require.ErrorIs(t, err, schemavalidator.ErrUnknownTarget)

	_, err = ApplyOverrides(res, map[string]domain.Field{"Felt 9": domain.FieldNotes})
	require.ErrorIs(t, err, ErrUnknownColumn)
}

func TestVerifyProfileDetectsTampering(t *testing.T) {
	profile, err := NewProfile(uuid.New(), "p", []string{"Navn", "Adresse"}, map[string]domain.Field{"Navn": domain.FieldName}, false)
	require.NoError(t, err)
	require.NoError(t, VerifyProfile(profile))

	profile.SourceColumns = append(profile.SourceColumns, "Telefon")
	require.ErrorIs(t, VerifyProfile(profile), ErrSignatureMismatch)
}
