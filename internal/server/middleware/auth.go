// Package middleware holds the HTTP access-control middleware.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"quizdeck/internal/platform/httpx"
	"quizdeck/internal/security"
)

// RefreshHeader carries the opaque refresh token on requests that want the
// expiry hint. Its presence alone never authenticates anything.
const RefreshHeader = "Refresh"

// TokenValidator validates access tokens; satisfied by security.TokenProvider.
type TokenValidator interface {
	ValidateAccess(token string) (*security.AccessClaims, error)
}

// Authenticate returns middleware that requires a valid bearer access token
// and injects the caller identity into the request context.
//
// Failure modes are deliberately coarse: any missing, malformed, tampered, or
// expired token yields 401 unauthorized. The single exception is an expired
// token accompanied by a Refresh header, which yields 401 token_expired so a
// client holding a refresh token knows rotation is worth attempting. Tokens
// restricted to the forced-reset flow are rejected here; reset endpoints
// accept them via AuthenticateRestricted.
func Authenticate(tokens TokenValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, false)
}

// AuthenticateRestricted is Authenticate for the forced password reset
// endpoints: restricted tokens pass.
func AuthenticateRestricted(tokens TokenValidator) func(http.Handler) http.Handler {
	return authenticate(tokens, true)
}

func authenticate(tokens TokenValidator, allowRestricted bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				writeUnauthorized(w, httpx.CodeUnauthorized)
				return
			}
			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				if errors.Is(err, security.ErrTokenExpired) && r.Header.Get(RefreshHeader) != "" {
					writeUnauthorized(w, httpx.CodeTokenExpired)
					return
				}
				writeUnauthorized(w, httpx.CodeUnauthorized)
				return
			}
			if claims.Restricted && !allowRestricted {
				writeUnauthorized(w, httpx.CodeUnauthorized)
				return
			}
			id := &Identity{
				UserID:     claims.Subject,
				Email:      claims.Email,
				Restricted: claims.Restricted,
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeUnauthorized(w http.ResponseWriter, code string) {
	httpx.WriteError(w, http.StatusUnauthorized, code, "authentication required")
}
