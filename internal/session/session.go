// Package session holds the admin gate: an explicit session value with a
// login/logout lifecycle, handed to the handlers that need it.
package session

import (
	"context"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/websync-digital/sunlit-blue-spark/pkg/errors"
	"github.com/websync-digital/sunlit-blue-spark/pkg/middleware"
	"github.com/websync-digital/sunlit-blue-spark/pkg/validator"
)

// Roles carried in session tokens.
const (
	RoleAdmin   = "admin"
	RoleVisitor = "visitor"
)

// Credentials are submitted by the login form.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Gate checks admin credentials and tracks ended sessions.
type Gate struct {
	email        string
	passwordHash []byte
	tokens       *TokenManager

	mu       sync.Mutex
	revoked  map[string]time.Time
	onLogout []func(sessionID string)
	now      func() time.Time
}

// NewGate creates a gate for one admin account. passwordHash is a bcrypt hash.
func NewGate(adminEmail, passwordHash string, tokens *TokenManager) *Gate {
	return &Gate{
		email:        strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: []byte(passwordHash),
		tokens:       tokens,
		revoked:      make(map[string]time.Time),
		now:          time.Now,
	}
}

// OnLogout registers fn to run whenever a session logs out.
func (g *Gate) OnLogout(fn func(sessionID string)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onLogout = append(g.onLogout, fn)
}

// Start creates a fresh, non-admin session.
func (g *Gate) Start() *Session {
	return &Session{id: uuid.NewString(), gate: g}
}

// Resume rebuilds the session described by claims, or starts a new one
// when claims are missing or were revoked by a logout.
func (g *Gate) Resume(claims *middleware.Claims) *Session {
	if claims == nil || claims.Subject == "" || g.isRevoked(claims.Subject) {
		return g.Start()
	}
	return &Session{id: claims.Subject, admin: claims.Role == RoleAdmin, gate: g}
}

// Validate implements middleware.TokenValidator.
func (g *Gate) Validate(token string) (*middleware.Claims, error) {
	claims, err := g.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if g.isRevoked(claims.Subject) {
		return nil, apperrors.Unauthorized("session has ended")
	}
	return &middleware.Claims{Subject: claims.Subject, Role: claims.Role}, nil
}

func (g *Gate) checkCredentials(c Credentials) bool {
	emailOK := subtle.ConstantTimeCompare([]byte(c.Email), []byte(g.email)) == 1
	passwordOK := bcrypt.CompareHashAndPassword(g.passwordHash, []byte(c.Password)) == nil
	return emailOK && passwordOK
}

func (g *Gate) revoke(sessionID string) {
	g.mu.Lock()
	now := g.now()
	for id, until := range g.revoked {
		if now.After(until) {
			delete(g.revoked, id)
		}
	}
	g.revoked[sessionID] = now.Add(g.tokens.ttl)
	listeners := append([]func(string){}, g.onLogout...)
	g.mu.Unlock()

	for _, fn := range listeners {
		fn(sessionID)
	}
}

func (g *Gate) isRevoked(sessionID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	until, ok := g.revoked[sessionID]
	return ok && g.now().Before(until)
}

// Session is one visitor's authentication state.
type Session struct {
	mu    sync.RWMutex
	id    string
	admin bool
	gate  *Gate
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// IsAdmin reports whether the session has logged in as the admin.
func (s *Session) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.admin
}

// Login checks creds and marks the session as admin on success. A
// successful login always starts under a new session id.
func (s *Session) Login(creds Credentials) error {
	creds.Email = strings.ToLower(strings.TrimSpace(creds.Email))
	if err := validator.Validate(creds); err != nil {
		return err
	}
	if !s.gate.checkCredentials(creds) {
		return apperrors.Unauthorized("invalid email or password")
	}

	s.mu.Lock()
	s.id = uuid.NewString()
	s.admin = true
	s.mu.Unlock()
	return nil
}

// Logout ends the admin session. Its token stops validating and every
// OnLogout listener runs with the session id.
func (s *Session) Logout() {
	s.mu.Lock()
	wasAdmin := s.admin
	s.admin = false
	id := s.id
	s.mu.Unlock()

	if wasAdmin {
		s.gate.revoke(id)
	}
}

// Token signs a token describing the session.
func (s *Session) Token() (string, time.Time, error) {
	role := RoleVisitor
	if s.IsAdmin() {
		role = RoleAdmin
	}
	return s.gate.tokens.Sign(s.ID(), role)
}

type contextKey struct{}

// NewContext returns ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by NewContext, or nil.
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}
