// Package dedupe decides whether an incoming row describes a customer that already exists.
package dedupe

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/customerloader"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/textsim"
)

const (
	nameWeight    = 0.5
	addressWeight = 0.35
	postalWeight  = 0.15

	candidateLimit = 50
)

// Config holds the scoring thresholds.
type Config struct {
	Threshold    float64
	AddressFloor float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{Threshold: 0.85, AddressFloor: 0.7}
}

// Candidate is the identifying subset of an incoming row.
type Candidate struct {
	ExternalRef string
	Name        string
	Address     string
	PostalCode  string
}

// CandidateFromValues extracts the identifying fields from mapped row values.
func CandidateFromValues(values map[domain.Field]string) Candidate {
	return Candidate{
		ExternalRef: values[domain.FieldExternalRef],
		Name:        values[domain.FieldName],
		Address:     values[domain.FieldAddress],
		PostalCode:  values[domain.FieldPostalCode],
	}
}

// Match is a detected duplicate together with the existing customer.
type Match struct {
	domain.DuplicateMatch
	Customer domain.Customer
}

// Detector scores candidates against the customer store.
type Detector struct {
	customers repository.CustomerRepository
	loader    *customerloader.CustomerLoader
	cfg       Config
}

// NewDetector builds a detector. loader may be nil, in which case external references
// are resolved one query at a time.
func NewDetector(customers repository.CustomerRepository, loader *customerloader.CustomerLoader, cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultConfig().Threshold
	}
	if cfg.AddressFloor <= 0 {
		cfg.AddressFloor = DefaultConfig().AddressFloor
	}
	return &Detector{customers: customers, loader: loader, cfg: cfg}
}

// Detect returns the best existing match for c, or nil. An external reference hit is
// always exact; otherwise candidates sharing the postal code or name key are scored.
func (d *Detector) Detect(ctx context.Context, tenantID uuid.UUID, c Candidate) (*Match, error) {
	if ref := strings.TrimSpace(c.ExternalRef); ref != "" {
		existing, err := d.byExternalRef(ctx, tenantID, ref)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &Match{
				DuplicateMatch: domain.DuplicateMatch{
					CustomerID: existing.ID,
					Name:       existing.Name,
					Type:       domain.MatchExact,
					Score:      1,
				},
				Customer: *existing,
			}, nil
		}
	}

	nameKey := textsim.Key(c.Name)
	if nameKey == "" && strings.TrimSpace(c.PostalCode) == "" {
		return nil, nil
	}

	candidates, err := d.customers.FindDuplicateCandidates(ctx, tenantID, domain.DuplicateQuery{
		NameKey:    nameKey,
		PostalCode: strings.TrimSpace(c.PostalCode),
		Limit:      candidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate candidates: %w", err)
	}

	var best *Match
	for _, existing := range candidates {
		if existing.TenantID != tenantID {
			continue
		}
		score, exact, ok := d.score(c, existing)
		if !ok {
			continue
		}
		if best != nil {
			if score < best.Score {
				continue
			}
			if score == best.Score && !existing.UpdatedAt.After(best.Customer.UpdatedAt) {
				continue
			}
		}
		matchType := domain.MatchFuzzy
		if exact {
			matchType = domain.MatchExact
		}
		best = &Match{
			DuplicateMatch: domain.DuplicateMatch{
				CustomerID: existing.ID,
				Name:       existing.Name,
				Type:       matchType,
				Score:      score,
			},
			Customer: existing,
		}
	}
	return best, nil
}

func (d *Detector) byExternalRef(ctx context.Context, tenantID uuid.UUID, ref string) (*domain.Customer, error) {
	if d.loader != nil && d.loader.TenantID() == tenantID {
		return d.loader.ByExternalRef(ctx, ref)
	}
	customers, err := d.customers.ListByExternalRefs(ctx, tenantID, []string{ref})
	if err != nil {
		return nil, fmt.Errorf("failed to load customer by external ref: %w", err)
	}
	if len(customers) == 0 {
		return nil, nil
	}
	return &customers[0], nil
}

// score returns the weighted similarity, whether all three fields agree exactly, and
// whether the pair qualifies as a duplicate at all.
func (d *Detector) score(c Candidate, existing domain.Customer) (float64, bool, bool) {
	name := similarity(c.Name, existing.Name)
	address := addressSimilarity(c.Address, existing.Address)
	if address < d.cfg.AddressFloor {
		return 0, false, false
	}
	postal := similarity(c.PostalCode, existing.PostalCode)

	composite := nameWeight*name + addressWeight*address + postalWeight*postal
	if composite < d.cfg.Threshold {
		return 0, false, false
	}
	exact := name == 1 && address == 1 && postal == 1
	return composite, exact, true
}

func similarity(a, b string) float64 {
	fa, fb := textsim.Fold(a), textsim.Fold(b)
	if fa == "" || fb == "" {
		return 0
	}
	if fa == fb {
		return 1
	}
	return textsim.Similarity(fa, fb)
}

// addressSimilarity requires the house numbers to agree exactly and scores only the
// street part fuzzily, so "Storgata 3" is a different site from "Storgata 1".
func addressSimilarity(a, b string) float64 {
	streetA, numberA := splitAddress(a)
	streetB, numberB := splitAddress(b)
	if numberA != numberB {
		return 0
	}
	if streetA == "" && streetB == "" {
		if numberA == "" {
			return 0
		}
		return 1
	}
	return similarity(streetA, streetB)
}

// splitAddress separates the first house number, including a letter suffix such as
// "1B" or "1 b", from the remaining folded tokens.
func splitAddress(address string) (string, string) {
	tokens := strings.Fields(textsim.Fold(address))
	street := make([]string, 0, len(tokens))
	number := ""
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if number != "" || !hasDigit(token) {
			street = append(street, token)
			continue
		}
		if i+1 < len(tokens) && isSuffixLetter(tokens[i+1]) {
			token += tokens[i+1]
			i++
		}
		number = token
	}
	return strings.Join(street, " "), number
}

func hasDigit(token string) bool {
	return strings.IndexFunc(token, unicode.IsDigit) >= 0
}

func isSuffixLetter(token string) bool {
	r, size := utf8.DecodeRuneInString(token)
	return size == len(token) && unicode.IsLetter(r)
}
