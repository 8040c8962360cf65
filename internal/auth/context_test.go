package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestEnforceTenantScope(t *testing.T) {
	tenant := uuid.New()

	if err := EnforceTenantScope(context.Background(), uuid.Nil); err == nil {
		t.Fatalf("expected missing tenant to be rejected")
	}
	if err := EnforceTenantScope(context.Background(), tenant); err != nil {
		t.Fatalf("unscoped context should allow any tenant: %v", err)
	}

	ctx := ContextWithTenantID(context.Background(), tenant)
	if err := EnforceTenantScope(ctx, tenant); err != nil {
		t.Fatalf("expected matching tenant to pass: %v", err)
	}
	if err := EnforceTenantScope(ctx, uuid.New()); err == nil {
		t.Fatalf("expected foreign tenant to be rejected")
	}
}

func TestTenantIDFromContextIgnoresNil(t *testing.T) {
	ctx := ContextWithTenantID(context.Background(), uuid.Nil)
	if _, ok := TenantIDFromContext(ctx); ok {
		t.Fatalf("nil tenant must not count as a scope")
	}
}
