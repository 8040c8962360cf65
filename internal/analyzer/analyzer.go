// Package analyzer proposes schema extensions for data the fixed customer fields cannot hold.
package analyzer

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/normalize"
	"github.com/rpattn/custimport/internal/textsim"
)

const maxSamples = 3

// Column is an unmapped source column with its values in row order.
type Column struct {
	Header string
	Values []string
}

// Input is what the analyzer inspects.
type Input struct {
	Columns   []Column
	Unmatched []domain.VocabularyMatch
}

// CustomFieldProposal suggests storing an unmapped column as a custom field.
type CustomFieldProposal struct {
	SourceColumn string           `json:"source_column"`
	SuggestedKey string           `json:"suggested_key"`
	Type         domain.FieldType `json:"type"`
	Occurrences  int              `json:"occurrences"`
	Samples      []string         `json:"samples"`
}

// CategoryProposal suggests adding an unresolved value to a vocabulary.
type CategoryProposal struct {
	Kind         string  `json:"kind"`
	Value        string  `json:"value"`
	Occurrences  int     `json:"occurrences"`
	Nearest      string  `json:"nearest,omitempty"`
	NearestScore float64 `json:"nearest_score,omitempty"`
}

// Proposals is advisory output; nothing is applied automatically.
type Proposals struct {
	CustomFields []CustomFieldProposal `json:"custom_fields"`
	Categories   []CategoryProposal    `json:"categories"`
}

// Analyze profiles unmapped columns and groups unmatched vocabulary values.
func Analyze(in Input) Proposals {
	out := Proposals{
		CustomFields: []CustomFieldProposal{},
		Categories:   []CategoryProposal{},
	}

	usedKeys := make(map[string]int)
	for _, col := range in.Columns {
		fieldType, occurrences, samples := profileColumn(col.Values)
		if occurrences == 0 {
			continue
		}
		key := slugify(col.Header)
		if key == "" {
			key = "custom"
		}
		if count := usedKeys[key]; count > 0 {
			usedKeys[key] = count + 1
			key = key + "_" + strconv.Itoa(count+1)
		} else {
			usedKeys[key] = 1
		}
		out.CustomFields = append(out.CustomFields, CustomFieldProposal{
			SourceColumn: col.Header,
			SuggestedKey: key,
			Type:         fieldType,
			Occurrences:  occurrences,
			Samples:      samples,
		})
	}

	type groupKey struct{ kind, value string }
	groups := make(map[groupKey]*CategoryProposal)
	order := make([]groupKey, 0)
	for _, match := range in.Unmatched {
		raw := strings.TrimSpace(match.Raw)
		if match.Type != domain.VocabularyNone || raw == "" {
			continue
		}
		key := groupKey{kind: match.Kind, value: textsim.Fold(raw)}
		proposal, ok := groups[key]
		if !ok {
			proposal = &CategoryProposal{Kind: match.Kind, Value: raw}
			if len(match.Candidates) > 0 {
				proposal.Nearest = match.Candidates[0].Value
				proposal.NearestScore = match.Candidates[0].Score
			}
			groups[key] = proposal
			order = append(order, key)
		}
		proposal.Occurrences++
	}
	for _, key := range order {
		out.Categories = append(out.Categories, *groups[key])
	}
	sort.SliceStable(out.Categories, func(i, j int) bool {
		return out.Categories[i].Occurrences > out.Categories[j].Occurrences
	})

	return out
}

// profileColumn infers the narrowest type that fits every non-empty value.
func profileColumn(values []string) (domain.FieldType, int, []string) {
	isBool, isInt, isFloat, isDate := true, true, true, true
	occurrences := 0
	samples := make([]string, 0, maxSamples)
	seen := make(map[string]struct{})

	for _, raw := range values {
		value := strings.TrimSpace(raw)
		if value == "" {
			continue
		}
		occurrences++
		if _, dup := seen[value]; !dup && len(samples) < maxSamples {
			samples = append(samples, value)
			seen[value] = struct{}{}
		}

		if !looksLikeBool(value) {
			isBool = false
		}
		if !looksLikeInt(value) {
			isInt = false
		}
		if !looksLikeFloat(value) {
			isFloat = false
		}
		if !looksLikeDate(value) {
			isDate = false
		}
	}

	switch {
	case occurrences == 0:
		return domain.FieldTypeString, 0, samples
	case isBool:
		return domain.FieldTypeBoolean, occurrences, samples
	case isInt:
		return domain.FieldTypeInteger, occurrences, samples
	case isFloat:
		return domain.FieldTypeFloat, occurrences, samples
	case isDate:
		return domain.FieldTypeDate, occurrences, samples
	default:
		return domain.FieldTypeString, occurrences, samples
	}
}

func looksLikeBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "false", "yes", "no", "ja", "nei", "y", "n", "j":
		return true
	}
	return false
}

func looksLikeInt(value string) bool {
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return true
	}
	// Allow float representations that can be losslessly converted to int.
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return math.Mod(f, 1) == 0
	}
	return false
}

func looksLikeFloat(value string) bool {
	_, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	return err == nil
}

// looksLikeDate rejects bare numbers, which would otherwise pass as Excel serials.
func looksLikeDate(value string) bool {
	if looksLikeFloat(value) {
		return false
	}
	_, ok := normalize.ParseDate(value)
	return ok
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(value string) string {
	value = slugPattern.ReplaceAllString(textsim.Fold(value), "_")
	return strings.Trim(value, "_")
}
