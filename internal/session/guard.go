package session

import (
	"fmt"

	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/state"
)

// Require guards a protected route. When nobody is signed in it stores path
// as the redirect intent, goes to the login screen and returns
// ErrUnauthenticated. Callers run Initialize first.
func (m *Manager) Require(path string) error {
	m.Visit(path)
	if m.Authenticated() {
		return nil
	}
	if rememberable(path, m.loginPath) {
		if err := m.store.Set(state.KeyRedirectAfterLogin, path); err != nil {
			logging.Get().Warn().Err(err).Msg("could not persist redirect intent")
		}
	}
	m.goTo(m.loginPath)
	return fmt.Errorf("%s: %w", path, ErrUnauthenticated)
}

// RequireAdmin guards an admin route. Anyone who is not a signed-in admin is
// sent home without a redirect intent.
func (m *Manager) RequireAdmin(path string) error {
	m.Visit(path)
	u := m.User()
	if u != nil && u.Admin() {
		return nil
	}
	m.goTo(HomePath)
	if u == nil {
		return fmt.Errorf("%s: %w", path, ErrUnauthenticated)
	}
	return fmt.Errorf("%s: %w", path, ErrForbidden)
}
