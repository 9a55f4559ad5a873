package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/priceform/backend-pricing/internal/common"
)

// RequireMerchant guards admin routes: requests must carry a valid bearer
// token and the resolved merchant identifier is stored on the context.
func RequireMerchant(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			merchantID, err := v.Verify(token, time.Now())
			if err != nil {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithMerchantID(r.Context(), merchantID)))
		})
	}
}

func extractToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
