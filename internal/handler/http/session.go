package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/websync-digital/sunlit-blue-spark/internal/session"
	"github.com/websync-digital/sunlit-blue-spark/pkg/httputil"
	"github.com/websync-digital/sunlit-blue-spark/pkg/validator"
)

// SessionHandler handles the login, logout and whoami endpoints.
type SessionHandler struct {
	gate    *session.Gate
	cookies cookies
	logger  *slog.Logger
}

// NewSessionHandler creates a session HTTP handler.
func NewSessionHandler(gate *session.Gate, c cookies, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{gate: gate, cookies: c, logger: logger}
}

type sessionResponse struct {
	Admin bool `json:"admin"`
}

// Me handles GET /api/v1/session.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sessionResponse{Admin: s.IsAdmin()}})
}

// Login handles POST /api/v1/session/login.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := httputil.DecodeJSON(r, &creds); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	s := session.FromContext(r.Context())
	if err := h.login(w, r, s, creds); err != nil {
		var valErr *validator.ValidationError
		if errors.As(err, &valErr) {
			httputil.WriteValidationError(w, err)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sessionResponse{Admin: true}})
}

func (h *SessionHandler) login(w http.ResponseWriter, r *http.Request, s *session.Session, creds session.Credentials) error {
	if err := s.Login(creds); err != nil {
		h.logger.WarnContext(r.Context(), "admin login rejected", slog.String("error", err.Error()))
		return err
	}
	if err := h.cookies.setSession(w, s); err != nil {
		return err
	}
	h.logger.InfoContext(r.Context(), "admin logged in", slog.String("session_id", s.ID()))
	return nil
}

// Logout handles POST /api/v1/session/logout.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.logout(w, r); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sessionResponse{Admin: false}})
}

// logout ends the current session and issues a fresh visitor session.
func (h *SessionHandler) logout(w http.ResponseWriter, r *http.Request) error {
	s := session.FromContext(r.Context())
	s.Logout()
	return h.cookies.setSession(w, h.gate.Start())
}
