package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/state"
)

type recorder struct {
	mu       sync.Mutex
	notices  []string
	navs     []string
	resets   int
	requests map[string]int
}

func (r *recorder) add(kind, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, kind+":"+fmt.Sprintf(format, args...))
}

func (r *recorder) Success(format string, args ...any) { r.add("success", format, args...) }
func (r *recorder) Info(format string, args ...any)    { r.add("info", format, args...) }
func (r *recorder) Error(format string, args ...any)   { r.add("error", format, args...) }

func (r *recorder) Reset() {
	r.mu.Lock()
	r.resets++
	r.mu.Unlock()
}

func (r *recorder) nav(path string) {
	r.mu.Lock()
	r.navs = append(r.navs, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() (notices, navs []string, resets int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...), append([]string(nil), r.navs...), r.resets
}

func (r *recorder) hits(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[path]
}

type fixture struct {
	client *api.Client
	store  *state.MemoryStore
	rec    *recorder
	mgr    *Manager
}

// newFixture serves the routes in handlers and counts every request by path.
func newFixture(t *testing.T, handlers map[string]http.HandlerFunc) *fixture {
	t.Helper()
	rec := &recorder{requests: map[string]int{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.mu.Lock()
		rec.requests[r.URL.Path]++
		rec.mu.Unlock()
		if h, ok := handlers[r.URL.Path]; ok {
			h(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	client := api.New(srv.URL)
	store := state.NewMemoryStore()
	mgr := New(client, store, WithNotifier(rec), WithCache(rec))
	mgr.Arm(rec.nav)
	return &fixture{client: client, store: store, rec: rec, mgr: mgr}
}

func jsonBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func meOK(t *testing.T, wantToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+wantToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"user":{"id":1,"name":"Ada","email":"ada@example.com","is_admin":false}}`))
	}
}

func TestInitializeWithoutTokenMakesNoRequest(t *testing.T) {
	f := newFixture(t, nil)

	st, err := f.mgr.Initialize(context.Background(), "/wallet")
	require.NoError(t, err)
	assert.False(t, st.Authenticated())
	assert.False(t, st.Loading)
	assert.True(t, st.Initialized)
	assert.Zero(t, f.rec.hits("/me"))

	notices, navs, _ := f.rec.snapshot()
	assert.Empty(t, notices)
	assert.Empty(t, navs)
}

func TestInitializeResolvesStoredToken(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/me": meOK(t, "tok-1")})
	require.NoError(t, f.store.Set(state.KeyToken, "tok-1"))

	st, err := f.mgr.Initialize(context.Background(), "/dashboard")
	require.NoError(t, err)
	require.True(t, st.Authenticated())
	assert.Equal(t, "Ada", st.User.Name)
	assert.Equal(t, "tok-1", f.mgr.Token())
	assert.Equal(t, "Bearer tok-1", f.client.DefaultHeader("Authorization"))
}

func TestInitializeAcceptsBareProfile(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/me": jsonBody(200, `{"id":2,"name":"Bo"}`)})
	require.NoError(t, f.store.Set(state.KeyToken, "tok"))

	st, err := f.mgr.Initialize(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "Bo", st.User.Name)
}

func TestInitializeRunsOnce(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/me": meOK(t, "tok")})
	require.NoError(t, f.store.Set(state.KeyToken, "tok"))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.mgr.Initialize(context.Background(), "/")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, f.rec.hits("/me"))
}

func TestInitializeFailureClearsSession(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"unauthorized": jsonBody(http.StatusUnauthorized, `{"message":"Unauthenticated."}`),
		"server error": jsonBody(http.StatusInternalServerError, `{}`),
		"network": func(w http.ResponseWriter, r *http.Request) {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, map[string]http.HandlerFunc{"/me": h})
			require.NoError(t, f.store.Set(state.KeyToken, "stale"))

			st, err := f.mgr.Initialize(context.Background(), "/lands/7")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSessionExpired)
			assert.False(t, st.Authenticated())
			assert.Empty(t, st.Token)
			assert.False(t, st.Loading)

			_, ok, _ := f.store.Get(state.KeyToken)
			assert.False(t, ok, "token must be removed")
			assert.Empty(t, f.client.DefaultHeader("Authorization"))
			assert.Equal(t, "/lands/7", state.GetString(f.store, state.KeyRedirectAfterLogin))

			notices, navs, resets := f.rec.snapshot()
			assert.Equal(t, []string{"error:" + MsgSessionExpired}, notices)
			assert.Equal(t, []string{"/login"}, navs)
			assert.Equal(t, 1, resets)
		})
	}
}

func TestInitializeCanceledKeepsToken(t *testing.T) {
	release := make(chan struct{})
	f := newFixture(t, map[string]http.HandlerFunc{"/me": func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}})
	defer close(release)
	require.NoError(t, f.store.Set(state.KeyToken, "tok"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := f.mgr.Initialize(ctx, "/")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, st.Loading)
	assert.Equal(t, "tok", state.GetString(f.store, state.KeyToken))
}

func TestLoginTokenShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		ok   bool
	}{
		{"token", `{"token":"t1","user":{"id":1,"name":"Ada"}}`, true},
		{"access_token", `{"access_token":"t1","user":{"id":1,"name":"Ada"}}`, true},
		{"data.token", `{"data":{"token":"t1"},"user":{"id":1,"name":"Ada"}}`, true},
		{"jwt field", `{"jwt":"t1","user":{"id":1}}`, false},
		{"nested access token", `{"data":{"access_token":"t1"}}`, false},
		{"empty token", `{"token":""}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, map[string]http.HandlerFunc{"/login": jsonBody(200, tc.body)})
			dest, err := f.mgr.Login(context.Background(), "ada@example.com", "pw")
			notices, _, _ := f.rec.snapshot()
			if !tc.ok {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrTokenMissing)
				assert.Empty(t, dest)
				assert.Equal(t, []string{"error:" + MsgLoginFailed}, notices)
				_, ok, _ := f.store.Get(state.KeyToken)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "t1", state.GetString(f.store, state.KeyToken))
			assert.Equal(t, "Bearer t1", f.client.DefaultHeader("Authorization"))
			assert.True(t, f.mgr.Authenticated())
			assert.Equal(t, []string{"success:" + MsgLoginOK}, notices)
		})
	}
}

func TestLoginConsumesRedirectIntentOnce(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/login": jsonBody(200, `{"token":"t","user":{"id":1}}`)})
	require.NoError(t, f.store.Set(state.KeyRedirectAfterLogin, "/lands/3"))

	dest, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "/lands/3", dest)
	_, ok, _ := f.store.Get(state.KeyRedirectAfterLogin)
	assert.False(t, ok, "intent is removed after use")

	dest, err = f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, DefaultDashboardPath, dest)

	_, navs, _ := f.rec.snapshot()
	assert.Equal(t, []string{"/lands/3", "/dashboard"}, navs)
	assert.Equal(t, DefaultDashboardPath, f.mgr.Current())
}

func TestLoginWithoutInlineUserResolvesProfile(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/login": jsonBody(200, `{"access_token":"t2"}`),
		"/me":    meOK(t, "t2"),
	})
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1, f.rec.hits("/me"))
	assert.Equal(t, "Ada", f.mgr.User().Name)
}

func TestLoginProfileFailure(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/login": jsonBody(200, `{"token":"t3"}`),
		"/me":    jsonBody(http.StatusInternalServerError, `{}`),
	})
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.False(t, f.mgr.Authenticated())
	_, ok, _ := f.store.Get(state.KeyToken)
	assert.False(t, ok)
}

func TestWrongCredentialsDoNotTriggerInterceptor(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/login": jsonBody(http.StatusUnauthorized, `{"message":"Invalid credentials"}`)})
	_, err := f.mgr.Login(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	notices, navs, resets := f.rec.snapshot()
	assert.Equal(t, []string{"error:" + MsgLoginFailed}, notices)
	assert.Empty(t, navs)
	assert.Zero(t, resets)
}

func TestLogoutIgnoresServerFailure(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/login":  jsonBody(200, `{"token":"t","user":{"id":1}}`),
		"/logout": jsonBody(http.StatusInternalServerError, `{}`),
	})
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	f.mgr.Logout(context.Background())
	assert.False(t, f.mgr.Authenticated())
	assert.Empty(t, f.mgr.Token())
	assert.Empty(t, f.client.DefaultHeader("Authorization"))
	_, ok, _ := f.store.Get(state.KeyToken)
	assert.False(t, ok)
	assert.Equal(t, 1, f.rec.hits("/logout"))

	notices, navs, resets := f.rec.snapshot()
	assert.Contains(t, notices, "info:"+MsgLoggedOut)
	assert.Equal(t, "/login", navs[len(navs)-1])
	assert.Equal(t, 1, resets)

	// clearing an already cleared session is harmless
	f.mgr.Logout(context.Background())
	assert.False(t, f.mgr.Authenticated())
}

func TestMidSession401ClearsOncePerOccurrence(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/me":    meOK(t, "tok"),
		"/lands": jsonBody(http.StatusUnauthorized, `{"message":"Unauthenticated."}`),
		"/ok":    jsonBody(200, `{}`),
	})
	require.NoError(t, f.store.Set(state.KeyToken, "tok"))
	_, err := f.mgr.Initialize(context.Background(), "/dashboard")
	require.NoError(t, err)

	f.mgr.Visit("/lands")
	require.NoError(t, f.client.Get(context.Background(), "/ok", nil))
	err = f.client.Get(context.Background(), "/lands", nil)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err), "the caller still sees the 401")

	assert.False(t, f.mgr.Authenticated())
	assert.Empty(t, state.GetString(f.store, state.KeyToken))
	assert.Empty(t, f.client.DefaultHeader("Authorization"))
	assert.Equal(t, "/lands", state.GetString(f.store, state.KeyRedirectAfterLogin))

	notices, navs, resets := f.rec.snapshot()
	assert.Equal(t, []string{"error:" + MsgSessionExpired}, notices)
	assert.Equal(t, []string{"/login"}, navs)
	assert.Equal(t, 1, resets)

	_ = f.client.Get(context.Background(), "/lands", nil)
	_, navs, _ = f.rec.snapshot()
	assert.Equal(t, []string{"/login", "/login"}, navs, "each 401 navigates once")
}

func TestServiceProfile401EndsSession(t *testing.T) {
	var meCalls int32
	f := newFixture(t, map[string]http.HandlerFunc{
		"/me": func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&meCalls, 1) == 1 {
				meOK(t, "tok")(w, r)
				return
			}
			jsonBody(http.StatusUnauthorized, `{"message":"Unauthenticated."}`)(w, r)
		},
	})
	require.NoError(t, f.store.Set(state.KeyToken, "tok"))
	_, err := f.mgr.Initialize(context.Background(), "/wallet")
	require.NoError(t, err)
	require.True(t, f.mgr.Authenticated())

	_, err = market.New(f.client).Balance(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))

	assert.False(t, f.mgr.Authenticated())
	assert.Empty(t, f.mgr.Token())
	_, ok, _ := f.store.Get(state.KeyToken)
	assert.False(t, ok)
	assert.Empty(t, f.client.DefaultHeader("Authorization"))
	assert.Equal(t, "/wallet", state.GetString(f.store, state.KeyRedirectAfterLogin))

	notices, navs, resets := f.rec.snapshot()
	assert.Equal(t, []string{"error:" + MsgSessionExpired}, notices)
	assert.Equal(t, []string{"/login"}, navs)
	assert.Equal(t, 1, resets)
}

func TestRearmReplacesNavigator(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{"/lands": jsonBody(http.StatusUnauthorized, `{}`)})

	var stale, fresh int32
	f.mgr.Arm(func(string) { atomic.AddInt32(&stale, 1) })
	f.mgr.Arm(func(string) { atomic.AddInt32(&fresh, 1) })
	assert.Equal(t, []string{"session"}, f.client.Interceptors())

	_ = f.client.Get(context.Background(), "/lands", nil)
	assert.Zero(t, atomic.LoadInt32(&stale))
	assert.Equal(t, int32(1), atomic.LoadInt32(&fresh))
}

func TestRequireStoresIntent(t *testing.T) {
	f := newFixture(t, nil)
	err := f.mgr.Require("/wallet")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, "/wallet", state.GetString(f.store, state.KeyRedirectAfterLogin))
	_, navs, _ := f.rec.snapshot()
	assert.Equal(t, []string{"/login"}, navs)
}

func TestRequireAdmin(t *testing.T) {
	f := newFixture(t, map[string]http.HandlerFunc{
		"/login": jsonBody(200, `{"token":"t","user":{"id":1,"is_admin":true}}`),
	})
	assert.ErrorIs(t, f.mgr.RequireAdmin("/admin/lands"), ErrUnauthenticated)
	_, err := f.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.NoError(t, f.mgr.RequireAdmin("/admin/lands"))
	assert.NoError(t, f.mgr.Require("/wallet"))

	g := newFixture(t, map[string]http.HandlerFunc{
		"/login": jsonBody(200, `{"token":"t","user":{"id":2,"is_admin":0}}`),
	})
	_, err = g.mgr.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.ErrorIs(t, g.mgr.RequireAdmin("/admin/lands"), ErrForbidden)
	_, navs, _ := g.rec.snapshot()
	assert.Equal(t, HomePath, navs[len(navs)-1])
}

func TestTokenInfo(t *testing.T) {
	assert.False(t, inspectToken("").Present)

	opaque := inspectToken("12|abcdefghijklmnop")
	assert.True(t, opaque.Present)
	assert.True(t, opaque.Opaque)
	assert.False(t, opaque.Expired(time.Now()))

	exp := time.Now().Add(-time.Hour).Truncate(time.Second)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "42",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	info := inspectToken(signed)
	assert.False(t, info.Opaque)
	assert.Equal(t, "42", info.Subject)
	assert.True(t, info.ExpiresAt.Equal(exp))
	assert.True(t, info.Expired(time.Now()))
}

func TestExtractTokenIgnoresNonStrings(t *testing.T) {
	_, err := extractToken(json.RawMessage(`{"token":123}`))
	assert.ErrorIs(t, err, ErrTokenMissing)
	_, err = extractToken(json.RawMessage(`not json`))
	assert.ErrorIs(t, err, ErrTokenMissing)
}
