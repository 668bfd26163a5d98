package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// ===== Session/JWT primitives =====

// SessionManager validates the bearer tokens minted by the checkout frontend
// for a résumé session. Tokens are HS256 over a shared secret; the subject
// claim carries the checkout session id.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionManager(secret string, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SessionManager{secret: []byte(secret), ttl: ttl}
}

type SessionClaims struct {
	jwt.RegisteredClaims
}

// SessionID returns the checkout session the token was minted for.
func (c *SessionClaims) SessionID() string { return c.Subject }

// Mint signs a token for an existing session id. Tests and the dev-mode
// bootstrap use this; in production the auth collaborator mints tokens.
func (m *SessionManager) Mint(sessionID string) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			Subject:   sessionID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// MintDevSession creates a fresh session id and a token for it. ULIDs keep
// dev sessions sortable in logs.
func (m *SessionManager) MintDevSession() (sessionID, token string, err error) {
	sessionID = ulid.Make().String()
	token, err = m.Mint(sessionID)
	return sessionID, token, err
}

func (m *SessionManager) ParseFromRequest(r *http.Request) (*SessionClaims, error) {
	hdr := r.Header.Get("Authorization")
	if hdr == "" {
		return nil, errors.New("missing token")
	}
	if !strings.HasPrefix(strings.ToLower(hdr), "bearer ") {
		return nil, errors.New("malformed authorization header")
	}
	return m.parse(strings.TrimSpace(hdr[7:]))
}

func (m *SessionManager) parse(tok string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil || !tkn.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token without session")
	}
	return claims, nil
}
