// Package session owns the authentication token and the signed-in profile. It
// attaches the token to the shared API client, answers HTTP 401 anywhere by
// forcing re-authentication, and remembers where to return after login.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/metrics"
	"github.com/alanjade/growthctl/internal/state"
)

// User-facing notices.
const (
	MsgSessionExpired = "Session expired. Please log in again."
	MsgLoginFailed    = "Login failed. Please check your credentials."
	MsgLoginOK        = "Login successful!"
	MsgLoggedOut      = "Logged out successfully!"
)

const (
	DefaultLoginPath     = "/login"
	DefaultDashboardPath = "/dashboard"
	HomePath             = "/"

	interceptorName = "session"
	authHeader      = "Authorization"
)

var (
	// ErrSessionExpired wraps the cause when a stored token could not be resolved.
	ErrSessionExpired = errors.New("session expired")
	// ErrUnauthenticated is returned by Require when nobody is signed in.
	ErrUnauthenticated = errors.New("not logged in")
	// ErrForbidden is returned by RequireAdmin for non-admin users.
	ErrForbidden = errors.New("admin access required")
)

// Client is the subset of *api.Client the manager needs.
type Client interface {
	Get(ctx context.Context, path string, out any) error
	Post(ctx context.Context, path string, body, out any) error
	SetDefaultHeader(key, value string)
	DelDefaultHeader(key string)
	SetResponseInterceptor(name string, fn api.ResponseInterceptor)
}

// Notifier shows short messages to the user.
type Notifier interface {
	Success(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// CacheResetter is implemented by per-user caches that must be dropped when
// the session ends.
type CacheResetter interface {
	Reset()
}

// Navigator moves the user to path.
type Navigator func(path string)

type nopNotifier struct{}

func (nopNotifier) Success(string, ...any) {}
func (nopNotifier) Info(string, ...any)    {}
func (nopNotifier) Error(string, ...any)   {}

// Manager is safe for concurrent use.
type Manager struct {
	client        Client
	store         state.Store
	caches        []CacheResetter
	notifier      Notifier
	loginPath     string
	dashboardPath string

	mu       sync.Mutex
	st       State
	navigate Navigator
	current  string
}

// Option configures a Manager.
type Option func(*Manager)

func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithNavigator sets the initial navigator. Arm replaces it.
func WithNavigator(nav Navigator) Option {
	return func(m *Manager) { m.navigate = nav }
}

// WithCache registers a cache to reset whenever credentials are cleared.
func WithCache(c CacheResetter) Option {
	return func(m *Manager) {
		if c != nil {
			m.caches = append(m.caches, c)
		}
	}
}

// WithPaths overrides the login and dashboard routes. Empty values keep the defaults.
func WithPaths(login, dashboard string) Option {
	return func(m *Manager) {
		if login != "" {
			m.loginPath = login
		}
		if dashboard != "" {
			m.dashboardPath = dashboard
		}
	}
}

func New(client Client, store state.Store, opts ...Option) *Manager {
	m := &Manager{
		client:        client,
		store:         store,
		notifier:      nopNotifier{},
		loginPath:     DefaultLoginPath,
		dashboardPath: DefaultDashboardPath,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

func (m *Manager) Authenticated() bool { return m.State().Authenticated() }

func (m *Manager) Token() string { return m.State().Token }

// User returns the resolved profile or nil.
func (m *Manager) User() *api.User { return m.State().User }

func (m *Manager) LoginPath() string     { return m.loginPath }
func (m *Manager) DashboardPath() string { return m.dashboardPath }

// Initialize resolves the stored token once per process. Later calls return
// the current state without doing anything.
func (m *Manager) Initialize(ctx context.Context, currentPath string) (State, error) {
	m.mu.Lock()
	if m.st.Initialized {
		s := m.st
		m.mu.Unlock()
		return s, nil
	}
	m.st.Initialized = true
	if currentPath != "" {
		m.current = currentPath
	}
	m.mu.Unlock()
	return m.Refresh(ctx, currentPath)
}

// Refresh re-reads the stored token and resolves the profile through /me.
// Without a token no request is made. Any failure other than cancellation
// clears the session and sends the user to the login screen, remembering
// currentPath as the place to return to.
func (m *Manager) Refresh(ctx context.Context, currentPath string) (State, error) {
	token, ok, err := m.store.Get(state.KeyToken)
	if err != nil {
		return m.State(), fmt.Errorf("read stored token: %w", err)
	}
	if !ok || token == "" {
		return m.apply(cleared), nil
	}

	m.apply(func(s State) State { return loading(s, token) })
	m.client.SetDefaultHeader(authHeader, "Bearer "+token)

	var raw json.RawMessage
	err = m.client.Get(api.CallerHandles(ctx), "/me", &raw)
	var user *api.User
	if err == nil {
		user, err = api.DecodeUser(raw)
	}
	if err != nil {
		if api.IsCanceled(err) {
			return m.apply(func(s State) State {
				s.Loading = false
				return s
			}), err
		}
		logging.Get().Debug().Err(err).Msg("auth check failed")
		m.expire(currentPath)
		return m.State(), fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return m.apply(func(s State) State { return authenticated(s, token, user) }), nil
}

// Login exchanges credentials for a token and returns the route to continue
// at: the remembered redirect intent, or the dashboard.
func (m *Manager) Login(ctx context.Context, email, password string) (string, error) {
	var raw json.RawMessage
	err := m.client.Post(api.CallerHandles(ctx), "/login", map[string]string{"email": email, "password": password}, &raw)
	var token string
	if err == nil {
		token, err = extractToken(raw)
	}
	if err != nil {
		metrics.IncLoginFailure()
		logging.Get().Debug().Err(err).Msg("login failed")
		m.notifier.Error("%s", MsgLoginFailed)
		return "", fmt.Errorf("login: %w", err)
	}

	if err := m.store.Set(state.KeyToken, token); err != nil {
		return "", fmt.Errorf("persist token: %w", err)
	}
	m.client.SetDefaultHeader(authHeader, "Bearer "+token)

	if user := inlineUser(raw); user != nil {
		m.apply(func(s State) State {
			s.Initialized = true
			return authenticated(s, token, user)
		})
	} else if _, err := m.Refresh(ctx, ""); err != nil {
		metrics.IncLoginFailure()
		return "", fmt.Errorf("login: %w", err)
	}

	metrics.IncLogin()
	m.notifier.Success("%s", MsgLoginOK)

	intent, _, err := m.store.Take(state.KeyRedirectAfterLogin)
	if err != nil {
		logging.Get().Warn().Err(err).Msg("could not read redirect intent")
	}
	dest := redirectTarget(intent, m.loginPath, m.dashboardPath)
	m.goTo(dest)
	return dest, nil
}

// Logout asks the server to revoke the token, ignoring any failure, then
// clears everything locally.
func (m *Manager) Logout(ctx context.Context) {
	if err := m.client.Post(api.CallerHandles(ctx), "/logout", nil, nil); err != nil {
		logging.Get().Debug().Err(err).Msg("server-side logout failed; clearing local session anyway")
	}
	m.clearCredentials()
	metrics.IncLogout()
	m.notifier.Info("%s", MsgLoggedOut)
	m.goTo(m.loginPath)
}

// Arm installs the 401 interceptor on the shared client with nav as the
// navigator. Arming again replaces both; interceptors never stack.
func (m *Manager) Arm(nav Navigator) {
	m.mu.Lock()
	m.navigate = nav
	m.mu.Unlock()
	m.client.SetResponseInterceptor(interceptorName, m.onResponse)
}

// Visit records the route the user is on. A 401 remembers it as the place to
// return to.
func (m *Manager) Visit(path string) {
	m.mu.Lock()
	m.current = path
	m.mu.Unlock()
}

// Current returns the last visited route.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// onResponse ignores the manager's own login, logout and profile requests:
// a bad password, a logout of a revoked token and a failed Refresh are
// handled where they are made. A 401 from any other request, including /me
// fetched by a service, ends the session.
func (m *Manager) onResponse(r api.Response) {
	if r.Status != http.StatusUnauthorized || r.CallerHandled {
		return
	}
	metrics.IncAuthFailure()
	logging.Get().Warn().Str("method", r.Method).Str("path", r.Path).Msg("request unauthorized; clearing session")
	m.expire(m.Current())
}

// expire clears the session, remembers from as the redirect intent, tells the
// user and goes to the login screen.
func (m *Manager) expire(from string) {
	m.clearCredentials()
	if rememberable(from, m.loginPath) {
		if err := m.store.Set(state.KeyRedirectAfterLogin, from); err != nil {
			logging.Get().Warn().Err(err).Msg("could not persist redirect intent")
		}
	}
	m.notifier.Error("%s", MsgSessionExpired)
	m.goTo(m.loginPath)
}

// clearCredentials is idempotent.
func (m *Manager) clearCredentials() {
	if err := m.store.Remove(state.KeyToken); err != nil {
		logging.Get().Warn().Err(err).Msg("could not remove stored token")
	}
	m.client.DelDefaultHeader(authHeader)
	for _, c := range m.caches {
		c.Reset()
	}
	m.apply(cleared)
}

func (m *Manager) apply(fn func(State) State) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = fn(m.st)
	return m.st
}

func (m *Manager) goTo(path string) {
	m.mu.Lock()
	nav := m.navigate
	m.current = path
	m.mu.Unlock()
	if nav != nil {
		nav(path)
	}
}
