package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ContextKey is a custom type for context keys to avoid collisions.
type ContextKey string

const AuthenticatedOperatorContextKey = ContextKey("authenticatedOperator")

// AuthenticatedOperator identifies the cashier behind an authenticated
// request.
type AuthenticatedOperator struct {
	ID   int64
	Name string
	Role string
}

// OperatorFromContext returns the operator the auth middleware stored, or
// false when the request was not authenticated.
func OperatorFromContext(ctx context.Context) (AuthenticatedOperator, bool) {
	op, ok := ctx.Value(AuthenticatedOperatorContextKey).(AuthenticatedOperator)
	return op, ok
}

type operatorClaims struct {
	Name string `json:"name"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware validates the Bearer token and stores the operator
// identity in the request context.
func AuthMiddleware(jwtSecret string, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.WarnContext(r.Context(), "Authorization header missing")
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.WarnContext(r.Context(), "Invalid Authorization header format")
				http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
				return
			}

			claims := &operatorClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				logger.WarnContext(r.Context(), "Token validation failed", "error", err)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			operatorID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || operatorID <= 0 {
				logger.WarnContext(r.Context(), "Token subject is not an operator id", "subject", claims.Subject)
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			operator := AuthenticatedOperator{
				ID:   operatorID,
				Name: claims.Name,
				Role: claims.Role,
			}
			ctx := context.WithValue(r.Context(), AuthenticatedOperatorContextKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
