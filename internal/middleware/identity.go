// Package middleware provides HTTP middlewares for caller identity and
// request logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/CipherStudio/internal/access"
)

type ctxKey string

const identityKey ctxKey = "identity"

// WithIdentity resolves the caller from the bearer token or the user-id
// header and stores it in the request context. Requests without any
// identity pass through unchanged.
func WithIdentity(v access.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ident := access.ResolveIdentity(r, v)
			if ident.Known() {
				r = r.WithContext(ContextWithIdentity(r.Context(), ident))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests that carry no verified bearer token.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IdentityFromContext(r.Context()).Authenticated {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ContextWithIdentity returns a copy of ctx carrying ident.
func ContextWithIdentity(ctx context.Context, ident access.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFromContext extracts the caller identity from the request context.
// Returns the zero Identity if none was resolved.
func IdentityFromContext(ctx context.Context) access.Identity {
	if ident, ok := ctx.Value(identityKey).(access.Identity); ok {
		return ident
	}
	return access.Identity{}
}
