// Package session carries the caller identity {role, participantId} in a
// signed cookie. The engine trusts whatever Actor this package produces.
package session

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
)

const CookieName = "secret-santa-session"

var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
)

type Claims struct {
	Role          engine.Role `json:"role"`
	ParticipantID string      `json:"participantId,omitempty"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret    []byte
	ttl       time.Duration
	adminCode string
	secure    bool
	now       func() time.Time
}

type Option func(*Manager)

// WithSecureCookie marks issued cookies Secure (HTTPS only).
func WithSecureCookie(secure bool) Option { return func(m *Manager) { m.secure = secure } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(secret string, ttl time.Duration, adminCode string, opts ...Option) *Manager {
	m := &Manager{
		secret:    []byte(secret),
		ttl:       ttl,
		adminCode: adminCode,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue signs a token for a.
func (m *Manager) Issue(a engine.Actor) (string, time.Time, error) {
	now := m.now()
	exp := now.Add(m.ttl)
	claims := &Claims{
		Role:          a.Role,
		ParticipantID: a.ParticipantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, exp, nil
}

// Parse verifies token and returns the identity it carries.
func (m *Manager) Parse(token string) (engine.Actor, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return engine.Actor{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	switch claims.Role {
	case engine.RoleAdmin:
		return engine.Actor{Role: engine.RoleAdmin}, nil
	case engine.RolePlayer:
		if claims.ParticipantID == "" {
			return engine.Actor{}, fmt.Errorf("%w: player without participant", ErrInvalidSession)
		}
		return engine.Actor{Role: engine.RolePlayer, ParticipantID: claims.ParticipantID}, nil
	default:
		return engine.Actor{}, fmt.Errorf("%w: role %q", ErrInvalidSession, claims.Role)
	}
}

// FromRequest reads the session cookie. Callers without a valid session get
// ErrNoSession or ErrInvalidSession.
func (m *Manager) FromRequest(r *http.Request) (engine.Actor, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return engine.Actor{}, ErrNoSession
	}
	return m.Parse(c.Value)
}

// Actor is FromRequest with failures downgraded to a spectator.
func (m *Manager) Actor(r *http.Request) engine.Actor {
	a, err := m.FromRequest(r)
	if err != nil {
		return engine.Actor{Role: engine.RoleSpectator}
	}
	return a
}

func (m *Manager) SetCookie(w http.ResponseWriter, a engine.Actor) error {
	token, exp, err := m.Issue(a)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// CheckAdminCode compares code with the configured secret. Admin login is
// disabled when no secret is configured.
func (m *Manager) CheckAdminCode(code string) bool {
	if m.adminCode == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(m.adminCode)) == 1
}
