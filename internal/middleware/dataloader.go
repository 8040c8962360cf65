package middleware

import (
	"net/http"

	"github.com/rpattn/custimport/internal/auth"
	"github.com/rpattn/custimport/internal/customerloader"
	"github.com/rpattn/custimport/internal/repository"
)

// DataLoaderMiddleware attaches a tenant scoped customer loader to the request context.
// It must run after TenantMiddleware; unscoped requests get no loader.
func DataLoaderMiddleware(repo repository.CustomerRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, ok := auth.TenantIDFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			loader := customerloader.NewCustomerLoader(repo, tenantID)
			next.ServeHTTP(w, r.WithContext(customerloader.WithLoader(r.Context(), loader)))
		})
	}
}
