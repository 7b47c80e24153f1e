package middleware

import (
	"context"
	"log/slog"
	"net/http"
)

// EntitlementChecker answers whether an identity holds premium access.
type EntitlementChecker interface {
	IsEntitled(ctx context.Context, identity string) (bool, error)
}

// RequirePremium rejects authenticated callers without an entitlement. It
// must run after Auth.
func RequirePremium(checker EntitlementChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			entitled, err := checker.IsEntitled(r.Context(), claims.Email)
			if err != nil {
				slog.Error("entitlement check failed", "identity", claims.Email, "err", err)
				writeJSONError(w, http.StatusInternalServerError, "server error")
				return
			}
			if !entitled {
				writeJSONError(w, http.StatusForbidden, "premium access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
