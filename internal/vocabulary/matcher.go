// Package vocabulary resolves free-text values against controlled vocabularies.
package vocabulary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/textsim"
)

// Issue codes raised for values that do not resolve.
const (
	CodeUnmatched = "vocabulary_unmatched"
	CodeAmbiguous = "vocabulary_ambiguous"
)

const (
	normalizedConfidence = 0.95
	maxCandidates        = 3
)

// Config holds the fuzzy acceptance thresholds.
type Config struct {
	SimilarityThreshold float64
	AmbiguityMargin     float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{SimilarityThreshold: 0.8, AmbiguityMargin: 0.05}
}

type term struct {
	canonical string
	key       string
}

type vocabularyIndex struct {
	canonicals []string
	exact      map[string]string
	normalized map[string]string
	terms      []term
}

// Matcher resolves values per vocabulary kind. It is immutable once built.
type Matcher struct {
	cfg     Config
	entries map[string][]Entry
	indexes map[string]*vocabularyIndex
}

// NewMatcher builds a matcher over vocabularies. A nil map uses Defaults.
func NewMatcher(vocabularies map[string][]Entry, cfg Config) *Matcher {
	if vocabularies == nil {
		vocabularies = Defaults()
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultConfig().SimilarityThreshold
	}
	if cfg.AmbiguityMargin < 0 {
		cfg.AmbiguityMargin = DefaultConfig().AmbiguityMargin
	}

	m := &Matcher{
		cfg:     cfg,
		entries: make(map[string][]Entry, len(vocabularies)),
		indexes: make(map[string]*vocabularyIndex, len(vocabularies)),
	}
	for kind, entries := range vocabularies {
		copied := make([]Entry, len(entries))
		for i, entry := range entries {
			copied[i] = Entry{Canonical: entry.Canonical, Aliases: append([]string(nil), entry.Aliases...)}
		}
		m.entries[kind] = copied
		m.indexes[kind] = buildIndex(copied)
	}
	return m
}

func buildIndex(entries []Entry) *vocabularyIndex {
	idx := &vocabularyIndex{
		exact:      map[string]string{},
		normalized: map[string]string{},
	}
	for _, entry := range entries {
		idx.canonicals = append(idx.canonicals, entry.Canonical)
		for _, value := range append([]string{entry.Canonical}, entry.Aliases...) {
			lower := strings.ToLower(strings.TrimSpace(value))
			if _, exists := idx.exact[lower]; !exists {
				idx.exact[lower] = entry.Canonical
			}
			key := textsim.Key(value)
			if _, exists := idx.normalized[key]; !exists && key != "" {
				idx.normalized[key] = entry.Canonical
			}
			idx.terms = append(idx.terms, term{canonical: entry.Canonical, key: key})
		}
	}
	return idx
}

// WithAliases returns a matcher that also treats the tenant aliases as exact synonyms.
// Aliases for unknown kinds or canonicals are ignored.
func (m *Matcher) WithAliases(aliases []domain.VocabularyAlias) *Matcher {
	if len(aliases) == 0 {
		return m
	}
	merged := make(map[string][]Entry, len(m.entries))
	for kind, entries := range m.entries {
		merged[kind] = append([]Entry(nil), entries...)
	}
	for _, alias := range aliases {
		entries := merged[alias.Kind]
		for i := range entries {
			if strings.EqualFold(entries[i].Canonical, alias.Canonical) {
				entries[i].Aliases = append(append([]string(nil), entries[i].Aliases...), alias.Alias)
				break
			}
		}
	}
	return NewMatcher(merged, m.cfg)
}

// Kinds lists the configured vocabulary kinds.
func (m *Matcher) Kinds() []string {
	kinds := make([]string, 0, len(m.indexes))
	for kind := range m.indexes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// Canonicals lists the canonical values of kind.
func (m *Matcher) Canonicals(kind string) []string {
	idx, ok := m.indexes[kind]
	if !ok {
		return nil
	}
	return append([]string(nil), idx.canonicals...)
}

// IsCanonical reports whether value is a canonical entry of kind.
func (m *Matcher) IsCanonical(kind, value string) bool {
	for _, canonical := range m.Canonicals(kind) {
		if canonical == value {
			return true
		}
	}
	return false
}

// Match resolves raw against the vocabulary of kind. The first policy that hits wins:
// exact, normalized, then fuzzy. A fuzzy near-tie is reported as ambiguous.
func (m *Matcher) Match(kind, raw string) domain.VocabularyMatch {
	result := domain.VocabularyMatch{Kind: kind, Raw: raw, Value: raw, Type: domain.VocabularyNone}
	value := strings.TrimSpace(raw)
	idx, ok := m.indexes[kind]
	if !ok || value == "" {
		return result
	}

	if canonical, ok := idx.exact[strings.ToLower(value)]; ok {
		result.Value = canonical
		result.Type = domain.VocabularyExact
		result.Confidence = 1
		return result
	}

	key := textsim.Key(value)
	if canonical, ok := idx.normalized[key]; ok {
		result.Value = canonical
		result.Type = domain.VocabularyNormalized
		result.Confidence = normalizedConfidence
		return result
	}

	candidates := idx.rank(key)
	if len(candidates) > maxCandidates {
		result.Candidates = candidates[:maxCandidates]
	} else {
		result.Candidates = candidates
	}
	if len(candidates) == 0 {
		return result
	}

	best := candidates[0]
	if best.Score < m.cfg.SimilarityThreshold {
		return result
	}
	runnerUp := 0.0
	if len(candidates) > 1 {
		runnerUp = candidates[1].Score
	}
	if best.Score-runnerUp <= m.cfg.AmbiguityMargin {
		result.Ambiguous = true
		return result
	}

	result.Value = best.Value
	result.Type = domain.VocabularyFuzzy
	result.Confidence = best.Score
	result.Candidates = nil
	return result
}

// rank scores each canonical by its best matching term, highest first.
func (idx *vocabularyIndex) rank(key string) []domain.VocabularyCandidate {
	if key == "" {
		return nil
	}
	best := map[string]float64{}
	for _, t := range idx.terms {
		score := textsim.Similarity(key, t.key)
		if score > best[t.canonical] {
			best[t.canonical] = score
		}
	}

	candidates := make([]domain.VocabularyCandidate, 0, len(best))
	for canonical, score := range best {
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.VocabularyCandidate{Value: canonical, Score: score})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score == candidates[j].Score {
			return candidates[i].Value < candidates[j].Value
		}
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// Issue returns the warning to attach to a row when match did not resolve, or nil.
func Issue(field domain.Field, column string, match domain.VocabularyMatch) *domain.ValidationIssue {
	if match.Type != domain.VocabularyNone || strings.TrimSpace(match.Raw) == "" {
		return nil
	}

	names := make([]string, 0, len(match.Candidates))
	for _, candidate := range match.Candidates {
		names = append(names, candidate.Value)
	}

	issue := domain.ValidationIssue{
		Severity:     domain.SeverityWarning,
		Code:         CodeUnmatched,
		Field:        field,
		SourceColumn: column,
		Value:        match.Raw,
		Message:      fmt.Sprintf("%q does not match any known %s", match.Raw, match.Kind),
	}
	if match.Ambiguous {
		issue.Code = CodeAmbiguous
		issue.Message = fmt.Sprintf("%q matches several %s values equally well", match.Raw, match.Kind)
	}
	if len(names) > 0 {
		issue.SuggestedFix = "did you mean " + strings.Join(names, ", ") + "?"
	}
	return &issue
}
