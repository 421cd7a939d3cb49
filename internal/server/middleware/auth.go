// Package middleware provides HTTP middleware for the publish API.
package middleware

import (
	"context"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// tokenKey is the context key for the provider token of a request.
const tokenKey ContextKey = "providerToken"

// BearerToken extracts the provider token from the Authorization header and
// adds it to the request context. Requests without a header use fallback;
// when fallback is empty too they proceed without a token and the publish
// fails at credential validation. A malformed header is rejected.
func BearerToken(fallback string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := fallback

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				// Handle case-insensitive "Bearer" prefix
				parts := strings.Fields(authHeader)
				if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				token = strings.TrimSpace(parts[1])
			}

			ctx := context.WithValue(r.Context(), tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Token returns the provider token stored by BearerToken.
func Token(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey).(string)
	return token
}
