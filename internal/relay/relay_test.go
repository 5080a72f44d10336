package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/notifications"
	"github.com/alanjade/growthctl/internal/session"
)

type fakeFetcher struct {
	mu     sync.Mutex
	lists  [][]notifications.Notification
	errs   []error
	calls  int
	forced bool
}

func (f *fakeFetcher) FetchUnread(ctx context.Context, force bool) ([]notifications.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	f.forced = force
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.lists) {
		return f.lists[len(f.lists)-1], nil
	}
	return f.lists[i], nil
}

type sent struct{ title, message string }

type fakeSender struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (s *fakeSender) Deliver(ctx context.Context, title, message string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sent{title, message})
	if s.err != nil {
		return 0, s.err
	}
	return 1, nil
}

func (s *fakeSender) all() []sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sent(nil), s.sent...)
}

type fakeSession struct {
	authed    bool
	refreshes int
	onRefresh bool
}

func (s *fakeSession) Authenticated() bool { return s.authed }
func (s *fakeSession) Refresh(ctx context.Context, _ string) (session.State, error) {
	s.refreshes++
	s.authed = s.onRefresh
	if s.onRefresh {
		return session.State{Token: "t", User: &api.User{ID: "1"}}, nil
	}
	return session.State{}, nil
}

func note(id, msg string) notifications.Notification {
	return notifications.Notification{ID: api.ID(id), Data: notifications.Data{Message: msg}}
}

func TestFirstPassPrimesWithoutBacklog(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{
		{note("1", "old")},
		{note("1", "old"), note("2", "Purchase confirmed")},
	}}
	s := &fakeSender{}
	r := New(Options{}, f, s, nil)

	n, err := r.RunOnce(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("priming pass: %d %v", n, err)
	}
	if len(s.all()) != 0 {
		t.Fatalf("backlog must not be relayed")
	}
	if !f.forced {
		t.Fatalf("relay must bypass the cache")
	}

	n, err = r.RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("second pass: %d %v", n, err)
	}
	got := s.all()
	if len(got) != 1 || got[0].title != "New notification" || got[0].message != "Purchase confirmed" {
		t.Fatalf("unexpected sends: %+v", got)
	}

	// nothing new on the third pass
	n, _ = r.RunOnce(context.Background())
	if n != 0 || len(s.all()) != 1 {
		t.Fatalf("expected no resend, got %d", n)
	}
}

func TestBacklogRelaysExistingUnread(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{note("1", "a"), note("2", "b")}}}
	s := &fakeSender{}
	r := New(Options{Backlog: true}, f, s, nil)

	n, err := r.RunOnce(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("expected 2 relayed, got %d %v", n, err)
	}
	got := s.all()
	if got[0].title != "2 new notifications" || got[0].message != "• a\n• b" {
		t.Fatalf("unexpected digest: %+v", got[0])
	}
}

func TestLevelNoneSendsNothing(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{note("1", "a")}}}
	s := &fakeSender{}
	r := New(Options{Backlog: true, Level: "NONE"}, f, s, nil)
	n, err := r.RunOnce(context.Background())
	if err != nil || n != 0 || len(s.all()) != 0 {
		t.Fatalf("level none must not send: %d %v %v", n, err, s.all())
	}
}

func TestFailedDeliveryRetriesNextPass(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{note("1", "a")}}}
	s := &fakeSender{err: errors.New("all targets down")}
	r := New(Options{Backlog: true}, f, s, nil)

	if _, err := r.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected delivery error")
	}
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	n, err := r.RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected retry to relay 1, got %d %v", n, err)
	}
}

func TestWaitsForSession(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{note("1", "a")}}}
	sess := &fakeSession{}
	r := New(Options{Backlog: true}, f, &fakeSender{}, sess)

	_, err := r.RunOnce(context.Background())
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	if f.calls != 0 {
		t.Fatalf("no fetch without a session")
	}

	sess.onRefresh = true
	n, err := r.RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("expected relay after login, got %d %v", n, err)
	}
	if sess.refreshes != 2 {
		t.Fatalf("expected 2 refresh attempts, got %d", sess.refreshes)
	}
}

func TestFailureAlertThresholdAndCooldown(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeFetcher{
		lists: [][]notifications.Notification{{}},
		errs:  []error{boom, boom, boom, boom, boom},
	}
	s := &fakeSender{}
	r := New(Options{FailureThreshold: 2, FailureCooldown: time.Hour}, f, s, nil)
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if _, err := r.RunOnce(context.Background()); !errors.Is(err, boom) {
			t.Fatalf("pass %d: expected boom, got %v", i, err)
		}
	}
	got := s.all()
	if len(got) != 1 || got[0].title != "Notification relay failing" || !strings.Contains(got[0].message, "2 relay passes") {
		t.Fatalf("expected a single alert at the threshold, got %+v", got)
	}

	now = now.Add(2 * time.Hour)
	_, _ = r.RunOnce(context.Background())
	if len(s.all()) != 2 {
		t.Fatalf("expected a second alert after cooldown, got %d", len(s.all()))
	}
}

func TestDescribeIncludesUnitsAndAmount(t *testing.T) {
	n := notifications.Notification{ID: "9", Data: notifications.Data{Title: "Sale", Message: "You sold units", Units: 2, AmountKobo: 150000}}
	title, msg := Digest([]notifications.Notification{n})
	if title != "Sale" || msg != "You sold units (2 units, ₦1,500.00)" {
		t.Fatalf("unexpected digest %q %q", title, msg)
	}
	_, msg = Digest([]notifications.Notification{{ID: "1"}})
	if msg != "New activity" {
		t.Fatalf("unexpected fallback text %q", msg)
	}
}

func TestStartStopWithCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/notifications/unread" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		hits.Add(1)
		_, _ = w.Write([]byte(`{"unread_notifications":[{"id":"n1","data":{"message":"Deposit received"}}]}`))
	}))
	defer srv.Close()

	cache := notifications.NewCache(api.New(srv.URL))
	s := &fakeSender{}
	r := New(Options{Interval: 10 * time.Millisecond, Backlog: true}, cache, s, nil)

	done := make(chan struct{})
	go func() {
		r.Start()
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)
	r.Stop(ctx) // idempotent
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after Stop")
	}

	if hits.Load() < 3 {
		t.Fatalf("expected every pass to hit the API, got %d", hits.Load())
	}
	got := s.all()
	if len(got) != 1 || got[0].message != "Deposit received" {
		t.Fatalf("expected the notification relayed exactly once, got %+v", got)
	}
}

func TestStopBeforeStartSkipsLoop(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{note("1", "a")}}}
	r := New(Options{Interval: time.Millisecond, Backlog: true}, f, &fakeSender{}, nil)
	r.Stop(context.Background())

	done := make(chan struct{})
	go func() {
		r.Start()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start must return when already stopped")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls != 0 {
		t.Fatalf("expected no passes after Stop, got %d", f.calls)
	}
}

func TestConcurrentStopWhileRunning(t *testing.T) {
	f := &fakeFetcher{lists: [][]notifications.Notification{{}}}
	r := New(Options{Interval: time.Millisecond}, f, &fakeSender{}, nil)

	done := make(chan struct{})
	go func() {
		r.Start()
		close(done)
	}()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(5 * time.Millisecond)
			r.Stop(context.Background())
		}()
	}
	wg.Wait()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after Stop")
	}
}
