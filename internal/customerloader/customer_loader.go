package customerloader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// CustomerLoader batches external reference lookups for one tenant.
type CustomerLoader struct {
	Loader   *dataloader.Loader
	tenantID uuid.UUID
}

// NewCustomerLoader builds a loader over repo scoped to tenantID.
func NewCustomerLoader(repo repository.CustomerRepository, tenantID uuid.UUID) *CustomerLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		refs := keys.Keys()

		customers, err := repo.ListByExternalRefs(ctx, tenantID, refs)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Map ref -> customer for ordering
		byRef := make(map[string]domain.Customer, len(customers))
		for _, c := range customers {
			byRef[normalizeRef(c.ExternalRef)] = c
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, ref := range refs {
			if c, ok := byRef[ref]; ok {
				results[i] = &dataloader.Result{Data: c}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}

		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))

	return &CustomerLoader{Loader: loader, tenantID: tenantID}
}

// TenantID returns the tenant the loader is scoped to.
func (l *CustomerLoader) TenantID() uuid.UUID {
	return l.tenantID
}

// Prefetch loads refs in a single batch so later lookups hit the cache.
func (l *CustomerLoader) Prefetch(ctx context.Context, refs []string) error {
	keys := make(dataloader.Keys, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		ref = normalizeRef(ref)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		keys = append(keys, dataloader.StringKey(ref))
	}
	if len(keys) == 0 {
		return nil
	}
	_, errs := l.Loader.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("failed to prefetch customers by external ref: %w", err)
		}
	}
	return nil
}

// ByExternalRef returns the customer holding ref, or nil when there is none.
func (l *CustomerLoader) ByExternalRef(ctx context.Context, ref string) (*domain.Customer, error) {
	ref = normalizeRef(ref)
	if ref == "" {
		return nil, nil
	}
	data, err := l.Loader.Load(ctx, dataloader.StringKey(ref))()
	if err != nil {
		return nil, fmt.Errorf("failed to load customer by external ref: %w", err)
	}
	customer, ok := data.(domain.Customer)
	if !ok {
		return nil, nil
	}
	return &customer, nil
}

// Prime records a customer written during the current operation.
func (l *CustomerLoader) Prime(ctx context.Context, customer domain.Customer) {
	ref := normalizeRef(customer.ExternalRef)
	if ref == "" {
		return
	}
	key := dataloader.StringKey(ref)
	l.Loader.Clear(ctx, key)
	l.Loader.Prime(ctx, key, customer)
}

func normalizeRef(ref string) string {
	return strings.ToLower(strings.TrimSpace(ref))
}
