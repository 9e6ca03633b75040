package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/usagegate/usagegate/internal/api"
)

type contextKey string

const serviceClaimsKey contextKey = "service_claims"

func Middleware(mgr *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			claims, err := mgr.Validate(parts[1])
			if err != nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), serviceClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetServiceClaims returns the calling service's claims from the context.
func GetServiceClaims(ctx context.Context) *ServiceClaims {
	claims, _ := ctx.Value(serviceClaimsKey).(*ServiceClaims)
	return claims
}

// CallerService returns the caller service name, or "unknown".
func CallerService(ctx context.Context) string {
	if claims := GetServiceClaims(ctx); claims != nil {
		return claims.Service
	}
	return "unknown"
}
