// Package mapping suggests and resolves which spreadsheet column feeds which customer field.
package mapping

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
	schemavalidator "github.com/rpattn/custimport/internal/schema/validator"
	"github.com/rpattn/custimport/internal/textsim"
)

// CodeDuplicateTarget flags a column whose synonym target was already claimed.
const CodeDuplicateTarget = "duplicate_target"

var (
	// ErrUnknownColumn is returned when an override names a header the file does not have.
	ErrUnknownColumn = errors.New("unknown source column")
	// ErrSignatureMismatch is returned when a profile's signature does not describe its columns.
	ErrSignatureMismatch = errors.New("profile signature does not match its source columns")
)

// Source explains where a column mapping came from.
type Source string

const (
	SourceSynonym Source = "synonym"
	SourceProfile Source = "profile"
	SourceUser    Source = "user"
	SourceNone    Source = "none"
)

// ColumnMapping is the resolved target for one source header.
type ColumnMapping struct {
	Index      int          `json:"index"`
	Header     string       `json:"header"`
	Target     domain.Field `json:"target,omitempty"`
	Confidence float64      `json:"confidence"`
	Source     Source       `json:"source"`
}

// Resolution is the mapping outcome for one header row.
type Resolution struct {
	Signature            string                   `json:"signature"`
	Columns              []ColumnMapping          `json:"columns"`
	Unmapped             []string                 `json:"unmapped"`
	Issues               []domain.ValidationIssue `json:"issues,omitempty"`
	Profile              *domain.MappingProfile   `json:"profile,omitempty"`
	History              *domain.SignatureHistory `json:"history,omitempty"`
	RequiresRemapping    bool                     `json:"requires_remapping"`
	FormatChangeDetected bool                     `json:"format_change_detected"`
}

// Headers returns the source headers in column order.
func (r Resolution) Headers() []string {
	headers := make([]string, len(r.Columns))
	for i, col := range r.Columns {
		headers[i] = col.Header
	}
	return headers
}

// Mapping returns source header → target for every column, unmapped columns included as "".
func (r Resolution) Mapping() map[string]domain.Field {
	out := make(map[string]domain.Field, len(r.Columns))
	for _, col := range r.Columns {
		out[col.Header] = col.Target
	}
	return out
}

// Targets returns target → column index for mapped columns.
func (r Resolution) Targets() map[domain.Field]int {
	out := make(map[domain.Field]int, len(r.Columns))
	for _, col := range r.Columns {
		if col.Target != "" {
			out[col.Target] = col.Index
		}
	}
	return out
}

// Mapper resolves headers using the static synonym table, saved profiles and signature history.
type Mapper struct {
	profiles repository.MappingProfileRepository
	history  repository.SignatureHistoryRepository
	index    map[string]domain.Field
}

// NewMapper constructs a Mapper. Either repository may be nil, which disables that lookup.
func NewMapper(profiles repository.MappingProfileRepository, history repository.SignatureHistoryRepository) *Mapper {
	index := make(map[string]domain.Field)
	for field, labels := range synonyms {
		for _, label := range labels {
			index[textsim.Key(label)] = field
		}
	}
	return &Mapper{profiles: profiles, history: history, index: index}
}

// NormalizeHeader case-folds and trims header, maps '_', '-' and '.' to spaces and
// collapses whitespace.
func NormalizeHeader(header string) string {
	header = strings.ToLower(header)
	header = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(header)
	return strings.Join(strings.Fields(header), " ")
}

// Signature fingerprints a header set. Order and duplicates do not matter; renaming,
// adding or removing a column does.
func Signature(headers []string) string {
	set := make(map[string]struct{}, len(headers))
	for _, header := range headers {
		if normalized := NormalizeHeader(header); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	normalized := make([]string, 0, len(set))
	for header := range set {
		normalized = append(normalized, header)
	}
	sort.Strings(normalized)

	sum := sha256.Sum256([]byte(strings.Join(normalized, "\n")))
	return hex.EncodeToString(sum[:])
}

// Suggest maps headers using only the synonym table.
func (m *Mapper) Suggest(headers []string) Resolution {
	res := Resolution{
		Signature: Signature(headers),
		Columns:   make([]ColumnMapping, len(headers)),
	}
	claimed := make(map[domain.Field]string)
	for idx, header := range headers {
		res.Columns[idx] = ColumnMapping{Index: idx, Header: header, Source: SourceNone}
		field, ok := m.index[textsim.Key(header)]
		if !ok {
			continue
		}
		if owner, taken := claimed[field]; taken {
			res.Issues = append(res.Issues, domain.ValidationIssue{
				Severity:     domain.SeverityInfo,
				Code:         CodeDuplicateTarget,
				Field:        field,
				SourceColumn: header,
				Message:      fmt.Sprintf("column %q also looks like %s, already mapped from %q", header, field, owner),
			})
			continue
		}
		claimed[field] = header
		res.Columns[idx].Target = field
		res.Columns[idx].Confidence = 1
		res.Columns[idx].Source = SourceSynonym
	}
	res.Unmapped = unmapped(res.Columns)
	return res
}

// Resolve maps headers for a tenant. A saved default profile for the signature wins over
// synonyms. The layout requires remapping when the tenant has neither uploaded the same
// signature before nor saved a profile for it.
func (m *Mapper) Resolve(ctx context.Context, tenantID uuid.UUID, headers []string) (Resolution, error) {
	res := m.Suggest(headers)

	if m.profiles != nil {
		profile, err := m.profiles.GetDefault(ctx, tenantID, res.Signature)
		switch {
		case err == nil:
			res = applyProfile(res, profile)
		case errors.Is(err, repository.ErrNotFound):
		default:
			return Resolution{}, fmt.Errorf("failed to load mapping profile: %w", err)
		}
	}

	var hasHistory bool
	if m.history != nil {
		entry, err := m.history.Get(ctx, tenantID, res.Signature)
		switch {
		case err == nil:
			res.History = &entry
		case errors.Is(err, repository.ErrNotFound):
		default:
			return Resolution{}, fmt.Errorf("failed to load signature history: %w", err)
		}
		hasHistory, err = m.history.HasAny(ctx, tenantID)
		if err != nil {
			return Resolution{}, fmt.Errorf("failed to check signature history: %w", err)
		}
	}

	res.RequiresRemapping = res.History == nil && res.Profile == nil
	res.FormatChangeDetected = res.RequiresRemapping && hasHistory
	return res, nil
}

func applyProfile(res Resolution, profile domain.MappingProfile) Resolution {
	byHeader := make(map[string]domain.Field, len(profile.Mapping))
	for header, target := range profile.Mapping {
		byHeader[NormalizeHeader(header)] = target
	}

	claimed := make(map[domain.Field]bool)
	for idx, col := range res.Columns {
		target, ok := byHeader[NormalizeHeader(col.Header)]
		if !ok {
			continue
		}
		res.Columns[idx].Target = ""
		res.Columns[idx].Confidence = 1
		res.Columns[idx].Source = SourceProfile
		if target != "" && domain.IsTargetField(target) && !claimed[target] {
			res.Columns[idx].Target = target
			claimed[target] = true
		}
	}
	for idx, col := range res.Columns {
		if col.Source == SourceSynonym && claimed[col.Target] {
			res.Columns[idx].Target = ""
			res.Columns[idx].Confidence = 0
			res.Columns[idx].Source = SourceNone
		}
	}

	res.Profile = &profile
	res.Unmapped = unmapped(res.Columns)
	return res
}

// ApplyOverrides replaces the targets of the named headers. An empty target unmaps the
// column. The resulting mapping must only use allowed targets, each at most once.
func ApplyOverrides(res Resolution, overrides map[string]domain.Field) (Resolution, error) {
	if len(overrides) == 0 {
		return res, nil
	}

	out := res
	out.Columns = append([]ColumnMapping(nil), res.Columns...)
	byHeader := make(map[string]int, len(out.Columns))
	for idx, col := range out.Columns {
		byHeader[col.Header] = idx
	}

	overridden := make(map[domain.Field]bool)
	for header, target := range overrides {
		idx, ok := byHeader[header]
		if !ok {
			return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownColumn, header)
		}
		out.Columns[idx].Target = target
		out.Columns[idx].Confidence = 1
		out.Columns[idx].Source = SourceUser
		if target != "" {
			overridden[target] = true
		}
	}

	// A user-assigned target takes precedence over a suggested column mapped to the same field.
	for idx, col := range out.Columns {
		if col.Source != SourceUser && overridden[col.Target] {
			out.Columns[idx].Target = ""
			out.Columns[idx].Confidence = 0
			out.Columns[idx].Source = SourceNone
		}
	}

	if err := schemavalidator.ValidateMapping(out.Mapping()); err != nil {
		return Resolution{}, err
	}
	out.Unmapped = unmapped(out.Columns)
	return out, nil
}

// NewProfile builds a mapping profile for headers and verifies its signature.
func NewProfile(tenantID uuid.UUID, name string, headers []string, mapping map[string]domain.Field, confirmed bool) (domain.MappingProfile, error) {
	if err := schemavalidator.ValidateMapping(mapping); err != nil {
		return domain.MappingProfile{}, err
	}
	now := time.Now().UTC()
	profile := domain.MappingProfile{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Name:            name,
		ColumnSignature: Signature(headers),
		SourceColumns:   append([]string(nil), headers...),
		Confirmed:       confirmed,
		IsDefault:       true,
		CreatedAt:       now,
	}.WithMapping(mapping)
	return profile, VerifyProfile(profile)
}

// VerifyProfile checks that the profile's signature characterises its source columns.
func VerifyProfile(profile domain.MappingProfile) error {
	if Signature(profile.SourceColumns) != profile.ColumnSignature {
		return ErrSignatureMismatch
	}
	return nil
}

func unmapped(columns []ColumnMapping) []string {
	out := make([]string, 0)
	for _, col := range columns {
		if col.Target == "" {
			out = append(out, col.Header)
		}
	}
	return out
}
