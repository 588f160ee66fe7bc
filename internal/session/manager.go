package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CookieName is the session cookie issued to every browser.
const CookieName = "sessionId"

// DefaultTTL is the session cookie lifetime. The cookie is rolling: every
// response refreshes the expiry.
const DefaultTTL = 7 * 24 * time.Hour

// Manager mints and verifies opaque session ids. The cookie value is
// "<id>.<signature>" where the signature is an HMAC-SHA256 over the id, so a
// tampered cookie is indistinguishable from a missing one.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	logger *log.Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL overrides the cookie lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecure marks the cookie Secure (production behind TLS).
func WithSecure(secure bool) Option {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager builds a session manager signing with secret.
func NewManager(secret []byte, options ...Option) *Manager {
	m := &Manager{
		secret: secret,
		ttl:    DefaultTTL,
		logger: log.New().WithField("component", "session"),
	}
	for _, option := range options {
		option(m)
	}
	return m
}

// LoadSecret reads the signing secret from path, trimming surrounding
// whitespace.
func LoadSecret(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session secret: %w", err)
	}
	secret := strings.TrimSpace(string(raw))
	if secret == "" {
		return nil, fmt.Errorf("session secret file %s is empty", path)
	}
	return []byte(secret), nil
}

// Resolve returns the request's session id, minting a fresh one when the
// cookie is missing or its signature does not verify. fresh reports whether a
// new id was minted.
func (m *Manager) Resolve(r *http.Request) (sessionID string, fresh bool) {
	cookie, err := r.Cookie(CookieName)
	if err == nil {
		if id, ok := m.verify(cookie.Value); ok {
			return id, false
		}
		m.logger.Debug("session cookie failed verification, minting new session")
	}
	return uuid.NewString(), true
}

// Issue writes the session cookie. Called on every response so the expiry
// rolls forward.
func (m *Manager) Issue(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(sessionID),
		Path:     "/",
		MaxAge:   int(m.ttl / time.Second),
		Expires:  time.Now().Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return id + "." + sig
}

func (m *Manager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	want, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	if !hmac.Equal(mac.Sum(nil), want) {
		return "", false
	}
	return id, true
}
