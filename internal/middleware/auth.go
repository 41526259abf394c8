package middleware

import (
	"net/http"
	"strings"

	"github.com/jayjaytrn/storefront-checkout/internal/auth"
	"go.uber.org/zap"
)

const ServiceHeader = "X-Caller-Service"

// ValidateAuth requires a bearer token signed with secret. An empty secret
// disables the check.
func ValidateAuth(secret string) Middleware {
	return func(h http.Handler, sugar *zap.SugaredLogger) http.Handler {
		if secret == "" {
			return h
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header is missing", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}

			service, err := auth.ValidateJWT(secret, tokenString)
			if err != nil {
				sugar.Warnw("Invalid token", "error", err)
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			r.Header.Set(ServiceHeader, service)

			h.ServeHTTP(w, r)
		})
	}
}
