package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/custimport/internal/auth"
)

// TenantHeader names the header the upstream gateway sets after authentication.
const TenantHeader = "X-Tenant-ID"

// TenantMiddleware scopes the request context to the tenant in TenantHeader. Requests
// without the header pass through unscoped; a malformed id is rejected.
func TenantMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(TenantHeader))
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"code":    "INVALID_TENANT",
				"message": "invalid " + TenantHeader + " header",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithTenantID(r.Context(), id)))
	})
}
