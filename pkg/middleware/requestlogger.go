package middleware

import (
	"log/slog"
	"net/http"

	"github.com/websync-digital/sunlit-blue-spark/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// the correlation id, the authenticated subject and trace ids. Handlers read
// it with logger.FromContext. Mount it after RequestLogging, Tracing and
// Authenticate.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if claims := ClaimsFromContext(ctx); claims != nil && claims.Subject != "" {
				ctx = logger.WithSessionID(ctx, claims.Subject)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
