package middleware

import (
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and returns the principal's user ID
// and role. Implemented by the auth package's JWTService.
type TokenValidator interface {
	ValidateAccessToken(token string) (userID, role string, err error)
}

// unauthorized writes a minimal 401 envelope without depending on the api
// package (which imports middleware).
func unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	ctx := SetErrorCode(r.Context(), "auth_failed")
	UpdateResponseContext(w, ctx)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"message":"` + message + `"}`))
}

// Authenticate validates the Authorization bearer token and stores the
// actor's ID and role in the request context. Requests without a valid token
// are rejected with 401.
func Authenticate(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, r, "Missing Authorization header")
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w, r, "Authorization header must be a bearer token")
				return
			}

			userID, role, err := validator.ValidateAccessToken(token)
			if err != nil {
				unauthorized(w, r, "Invalid or expired token")
				return
			}

			ctx := SetActorID(r.Context(), userID)
			ctx = SetActorRole(ctx, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects authenticated requests whose actor role is not in the
// allowed set. Must be placed after Authenticate in the chain.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !allowed[GetActorRole(r.Context())] {
				ctx := SetErrorCode(r.Context(), "forbidden")
				UpdateResponseContext(w, ctx)
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"message":"Insufficient permissions"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
