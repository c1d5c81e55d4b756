package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httputil"
	"github.com/websync-digital/sunlit-blue-spark/pkg/logger"
	"github.com/websync-digital/sunlit-blue-spark/pkg/middleware"
)

// Cookie names.
const (
	SessionCookie = "sid"
	ProfileCookie = "pid"
)

const profileCookieMaxAge = 365 * 24 * time.Hour

// ContentTypeJSON enforces that requests with a body are JSON, or multipart
// for image selection.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") && !strings.HasPrefix(ct, "multipart/form-data") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{Code: "UNSUPPORTED_MEDIA_TYPE", Message: "Content-Type must be application/json or multipart/form-data"},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// cookies issues the session and profile cookies.
type cookies struct {
	secure bool
}

func (c cookies) setSession(w http.ResponseWriter, s *session.Session) error {
	token, expires, err := s.Token()
	if err != nil {
		return apperrors.Internal(fmt.Errorf("sign session token: %w", err))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c cookies) setProfile(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     ProfileCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(profileCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Sessions resumes the session described by the validated token, or starts
// a new one and issues its cookie. Mount it after middleware.Authenticate.
func Sessions(gate *session.Gate, c cookies, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := middleware.ClaimsFromContext(r.Context())
			s := gate.Resume(claims)
			if claims == nil || claims.Subject != s.ID() {
				if err := c.setSession(w, s); err != nil {
					log.ErrorContext(r.Context(), "issue session cookie failed", slog.String("error", err.Error()))
				}
			}

			ctx := session.NewContext(r.Context(), s)
			ctx = logger.WithSessionID(ctx, s.ID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Profiles assigns every visitor a long-lived profile id that scopes the
// stored preferences.
func Profiles(c cookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if ck, err := r.Cookie(ProfileCookie); err == nil {
				if _, err := uuid.Parse(ck.Value); err == nil {
					id = ck.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
				c.setProfile(w, id)
			}
			next.ServeHTTP(w, r.WithContext(logger.WithVisitorID(r.Context(), id)))
		})
	}
}
