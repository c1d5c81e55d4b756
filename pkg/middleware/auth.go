package middleware

import (
	"context"
	"net/http"
	"strings"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// Claims is the identity carried by a validated token.
type Claims struct {
	Subject string
	Role    string
}

// TokenValidator validates a raw token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// TokenFromRequest returns the bearer token from the Authorization header,
// falling back to the named cookie.
func TokenFromRequest(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil {
			return c.Value
		}
	}
	return ""
}

// Authenticate validates the request token when one is present and stores
// its claims in the context. Requests without a valid token pass through
// anonymously; RequireRole decides what they may reach.
func Authenticate(validate TokenValidator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := TokenFromRequest(r, cookieName); token != "" {
				if claims, err := validate(token); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose claims lack one of roles. Browser page
// requests are redirected to loginPath; API requests get a JSON 401 or 403.
func RequireRole(loginPath string, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims != nil {
				if _, ok := allowed[claims.Role]; ok {
					next.ServeHTTP(w, r)
					return
				}
			}

			if loginPath != "" && wantsHTML(r) {
				http.Redirect(w, r, loginPath, http.StatusSeeOther)
				return
			}
			if claims == nil {
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			writeJSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the claims stored by Authenticate, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

func wantsHTML(r *http.Request) bool {
	return r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html")
}
