// Package relay polls the unread notification list and forwards newly
// arrived notifications to the configured push targets.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/logging"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/metrics"
	"github.com/alanjade/growthctl/internal/notifications"
	"github.com/alanjade/growthctl/internal/session"
)

// ErrNotAuthenticated is returned by a pass that found no usable session.
var ErrNotAuthenticated = errors.New("relay: not signed in")

const defaultInterval = time.Minute

// Notification levels.
const (
	LevelAll  = "all"
	LevelNone = "none"
)

// Fetcher is satisfied by *notifications.Cache.
type Fetcher interface {
	FetchUnread(ctx context.Context, force bool) ([]notifications.Notification, error)
}

// Sender is satisfied by *notify.MultiNotifier.
type Sender interface {
	Deliver(ctx context.Context, title, message string) (int, error)
}

// Session is satisfied by *session.Manager.
type Session interface {
	Authenticated() bool
	Refresh(ctx context.Context, currentPath string) (session.State, error)
}

// Options tune the polling loop.
type Options struct {
	Interval time.Duration
	// Level is LevelAll or LevelNone.
	Level string
	// Backlog relays notifications already unread when the relay starts.
	Backlog bool
	// After FailureThreshold failed passes in a row an alert is sent, then
	// suppressed for FailureCooldown. Zero threshold disables alerts.
	FailureThreshold int
	FailureCooldown  time.Duration
}

type Relay struct {
	opts    Options
	fetcher Fetcher
	sender  Sender
	sess    Session

	// Now is the clock; tests replace it.
	Now func() time.Time

	mu        sync.Mutex
	seen      map[string]struct{}
	primed    bool
	failures  int
	alertedAt time.Time
	waiting   bool
	stopped   bool

	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

func New(opts Options, fetcher Fetcher, sender Sender, sess Session) *Relay {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	opts.Level = strings.ToLower(strings.TrimSpace(opts.Level))
	if opts.Level == "" {
		opts.Level = LevelAll
	}
	return &Relay{
		opts:    opts,
		fetcher: fetcher,
		sender:  sender,
		sess:    sess,
		Now:     time.Now,
		seen:    make(map[string]struct{}),
		quit:    make(chan struct{}),
	}
}

// Start runs a pass immediately and then on every tick until Stop. It
// returns at once if Stop was already called.
func (r *Relay) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	// registered under mu so Stop never waits before this Add
	r.wg.Add(1)
	r.cancel = cancel
	r.mu.Unlock()
	defer r.wg.Done()

	logging.Get().Info().Dur("interval", r.opts.Interval).Str("level", r.opts.Level).Msg("starting notification relay")

	r.pass(ctx)
	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.pass(ctx)
		case <-r.quit:
			logging.Get().Info().Msg("stopping notification relay")
			return
		}
	}
}

func (r *Relay) pass(ctx context.Context) {
	n, err := r.RunOnce(ctx)
	switch {
	case errors.Is(err, ErrNotAuthenticated), api.IsCanceled(err):
	case err != nil:
		logging.Get().Error().Err(err).Msg("relay pass failed")
	case n > 0:
		logging.Get().Info().Int("relayed", n).Msg("relayed notifications")
	}
}

// Stop ends the loop and waits for it to return, or for ctx.
func (r *Relay) Stop(ctx context.Context) {
	r.mu.Lock()
	r.stopped = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	r.stopOnce.Do(func() { close(r.quit) })

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logging.Get().Warn().Msg("shutdown timeout exceeded while a relay pass was running")
	}
}

// ready reports whether a session exists, picking up a token stored by a
// login in another process.
func (r *Relay) ready(ctx context.Context) bool {
	if r.sess == nil || r.sess.Authenticated() {
		return true
	}
	st, err := r.sess.Refresh(ctx, "")
	return err == nil && st.Authenticated()
}

// RunOnce performs one pass and returns how many notifications were relayed.
func (r *Relay) RunOnce(ctx context.Context) (int, error) {
	metrics.IncRelayPass()
	defer func() { metrics.SetLastRelay(r.Now()) }()

	if !r.ready(ctx) {
		r.mu.Lock()
		first := !r.waiting
		r.waiting = true
		r.mu.Unlock()
		if first {
			logging.Get().Warn().Msg("no active session; relay waits for login")
		}
		return 0, ErrNotAuthenticated
	}
	r.mu.Lock()
	r.waiting = false
	r.mu.Unlock()

	list, err := r.fetcher.FetchUnread(ctx, true)
	if err != nil {
		if api.IsCanceled(err) {
			return 0, err
		}
		if api.IsUnauthorized(err) {
			// the session interceptor already cleared the token
			return 0, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
		}
		metrics.IncRelayFailure()
		r.recordFailure(ctx, err)
		return 0, fmt.Errorf("fetch unread notifications: %w", err)
	}
	r.clearFailures()

	fresh := r.diff(list)
	if len(fresh) == 0 || r.opts.Level == LevelNone {
		r.markSeen(list)
		return 0, nil
	}
	title, message := Digest(fresh)
	delivered, err := r.sender.Deliver(ctx, title, message)
	if err != nil && delivered == 0 {
		// keep them unseen so the next pass tries again
		return 0, fmt.Errorf("relay %d notifications: %w", len(fresh), err)
	}
	if err != nil {
		logging.Get().Warn().Err(err).Int("delivered", delivered).Msg("some relay targets failed")
	}
	r.markSeen(list)
	metrics.AddRelayed(len(fresh))
	return len(fresh), nil
}

// diff returns the notifications not relayed before. The first pass only
// primes the seen set unless the backlog is wanted.
func (r *Relay) diff(list []notifications.Notification) []notifications.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.primed {
		r.primed = true
		if !r.opts.Backlog {
			for _, n := range list {
				r.seen[string(n.ID)] = struct{}{}
			}
			return nil
		}
	}
	var fresh []notifications.Notification
	for _, n := range list {
		if _, ok := r.seen[string(n.ID)]; !ok {
			fresh = append(fresh, n)
		}
	}
	return fresh
}

// markSeen replaces the seen set with the IDs still unread, which keeps it
// bounded by the unread list.
func (r *Relay) markSeen(list []notifications.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]struct{}, len(list))
	for _, n := range list {
		seen[string(n.ID)] = struct{}{}
	}
	r.seen = seen
}

func (r *Relay) clearFailures() {
	r.mu.Lock()
	r.failures = 0
	r.mu.Unlock()
}

// recordFailure counts consecutive failed passes and alerts once the
// threshold is reached, at most once per cooldown.
func (r *Relay) recordFailure(ctx context.Context, cause error) {
	if r.opts.FailureThreshold <= 0 || r.opts.Level == LevelNone {
		return
	}
	now := r.Now()
	r.mu.Lock()
	r.failures++
	count := r.failures
	alert := count >= r.opts.FailureThreshold &&
		(r.alertedAt.IsZero() || now.Sub(r.alertedAt) >= r.opts.FailureCooldown)
	if alert {
		r.alertedAt = now
	}
	r.mu.Unlock()
	if !alert {
		return
	}
	msg := fmt.Sprintf("%d relay passes in a row could not load notifications: %s", count, api.Message(cause, cause.Error()))
	if _, err := r.sender.Deliver(ctx, "Notification relay failing", msg); err != nil {
		logging.Get().Error().Err(err).Msg("failed to send relay failure alert")
	}
}

// Digest renders notifications as one push message.
func Digest(list []notifications.Notification) (title, message string) {
	if len(list) == 1 {
		n := list[0]
		title = n.Data.Title
		if title == "" {
			title = "New notification"
		}
		return title, describe(n)
	}
	lines := make([]string, len(list))
	for i, n := range list {
		lines[i] = "• " + describe(n)
	}
	return fmt.Sprintf("%d new notifications", len(list)), strings.Join(lines, "\n")
}

func describe(n notifications.Notification) string {
	text := n.Text()
	var extra []string
	if n.Data.Units > 0 {
		extra = append(extra, fmt.Sprintf("%d units", n.Data.Units))
	}
	if n.Data.AmountKobo > 0 {
		extra = append(extra, market.FormatNaira(n.Data.AmountKobo))
	}
	if len(extra) > 0 {
		text += " (" + strings.Join(extra, ", ") + ")"
	}
	return text
}
