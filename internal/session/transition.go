package session

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/alanjade/growthctl/internal/api"
)

// ErrTokenMissing is returned by Login when the response carries no token in
// any recognised shape.
var ErrTokenMissing = errors.New("token not returned")

// State is a snapshot of the session.
type State struct {
	Token       string
	User        *api.User
	Loading     bool
	Initialized bool
}

// Authenticated reports whether a profile was resolved for the current token.
func (s State) Authenticated() bool { return s.Token != "" && s.User != nil }

// The functions below are pure: they derive a new State and never touch the
// store, the client or the user.

func loading(s State, token string) State {
	s.Token = token
	s.Loading = true
	return s
}

func authenticated(s State, token string, user *api.User) State {
	s.Token = token
	s.User = user
	s.Loading = false
	return s
}

func cleared(s State) State {
	s.Token = ""
	s.User = nil
	s.Loading = false
	return s
}

// extractToken finds the bearer token in a login response. "token" is the
// canonical field. "access_token" and "data.token" are accepted for older
// backend builds and should go once every deployment answers with "token".
func extractToken(raw json.RawMessage) (string, error) {
	for _, path := range []string{"token", "access_token", "data.token"} {
		if tok, ok := api.Lookup(raw, path); ok && strings.TrimSpace(tok) != "" {
			return tok, nil
		}
	}
	return "", ErrTokenMissing
}

// inlineUser returns the user object embedded in a login response, if any.
func inlineUser(raw json.RawMessage) *api.User {
	var wrapped struct {
		User *api.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil
	}
	return wrapped.User
}

// redirectTarget picks where to go after login. An intent pointing back at the
// login screen would loop, so it falls back to the dashboard.
func redirectTarget(intent, loginPath, dashboardPath string) string {
	intent = strings.TrimSpace(intent)
	if intent == "" || intent == loginPath {
		return dashboardPath
	}
	return intent
}

// rememberable reports whether path is worth storing as a redirect intent.
func rememberable(path, loginPath string) bool {
	path = strings.TrimSpace(path)
	return path != "" && path != loginPath
}
