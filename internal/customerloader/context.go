package customerloader

import (
	"context"
)

type ctxKey string

const customerLoaderKey ctxKey = "customerLoader"

// WithLoader stores loader in ctx.
func WithLoader(ctx context.Context, loader *CustomerLoader) context.Context {
	return context.WithValue(ctx, customerLoaderKey, loader)
}

// FromContext retrieves the loader stored in ctx.
func FromContext(ctx context.Context) *CustomerLoader {
	if l, ok := ctx.Value(customerLoaderKey).(*CustomerLoader); ok {
		return l
	}
	return nil
}
