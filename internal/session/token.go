package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo describes the stored token. The signature is never verified; the
// server stays the authority on validity.
type TokenInfo struct {
	Present   bool
	Opaque    bool
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether a JWT expiry has passed at now. Opaque tokens never
// report expiry.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt)
}

// TokenInfo inspects the current token.
func (m *Manager) TokenInfo() TokenInfo {
	return inspectToken(m.Token())
}

func inspectToken(raw string) TokenInfo {
	if raw == "" {
		return TokenInfo{}
	}
	info := TokenInfo{Present: true}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		// personal access tokens such as "12|abcdef" are not JWTs
		info.Opaque = true
		return info
	}
	if sub, err := claims.GetSubject(); err == nil {
		info.Subject = sub
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info
}
