// Package notify forwards marketplace activity to chat, push and e-mail
// services. Providers live in chat.go, push.go and email.go.
package notify

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/alanjade/growthctl/internal/logging"
)

// Agent identifies growthctl in outgoing payloads.
const Agent = "growthctl"

// DefaultCooldown is the minimum gap between two sends to the same provider.
const DefaultCooldown = 100 * time.Millisecond

const (
	defaultRetries     = 3
	defaultBaseBackoff = 100 * time.Millisecond
	sendTimeout        = 10 * time.Second
)

// Service is implemented by every provider.
type Service interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// MultiNotifier fans one message out to every configured provider with
// per-provider cooldown and retries.
type MultiNotifier struct {
	services []Service

	mu                sync.Mutex
	lastSent          map[string]time.Time
	cooldown          time.Duration
	providerCooldowns map[string]time.Duration

	retries     int
	baseBackoff time.Duration
	jitter      time.Duration
	// sleep is swapped in tests
	sleep func(time.Duration)

	wg sync.WaitGroup
}

func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{
		lastSent:    make(map[string]time.Time),
		cooldown:    DefaultCooldown,
		retries:     defaultRetries,
		baseBackoff: defaultBaseBackoff,
		sleep:       time.Sleep,
	}
}

func (m *MultiNotifier) Add(s Service) {
	if s != nil {
		m.services = append(m.services, s)
	}
}

func (m *MultiNotifier) Len() int { return len(m.services) }

// Names lists the configured providers in the order they were added.
func (m *MultiNotifier) Names() []string {
	out := make([]string, len(m.services))
	for i, s := range m.services {
		out[i] = s.Name()
	}
	return out
}

func (m *MultiNotifier) SetCooldown(d time.Duration) {
	m.mu.Lock()
	m.cooldown = d
	m.mu.Unlock()
}

// SetProviderCooldown overrides the cooldown for one provider.
func (m *MultiNotifier) SetProviderCooldown(name string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.providerCooldowns == nil {
		m.providerCooldowns = make(map[string]time.Duration)
	}
	m.providerCooldowns[name] = d
}

// SetRetry sets the attempt count and the backoff before the second attempt;
// later backoffs double. jitter adds up to that much random delay.
func (m *MultiNotifier) SetRetry(attempts int, base, jitter time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	m.retries = attempts
	m.baseBackoff = base
	m.jitter = jitter
}

func (m *MultiNotifier) providerCooldown(name string) time.Duration {
	if v, ok := m.providerCooldowns[name]; ok {
		return v
	}
	return m.cooldown
}

func (m *MultiNotifier) coolingDown(name string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSent[name]
	return ok && now.Sub(last) < m.providerCooldown(name)
}

// Send delivers in the background; use Wait to block until it finishes.
func (m *MultiNotifier) Send(ctx context.Context, title, message string) {
	now := time.Now()
	for _, s := range m.services {
		m.wg.Add(1)
		go func(svc Service) {
			defer m.wg.Done()
			if _, err := m.deliverOne(ctx, svc, title, message, now); err != nil {
				logging.Get().Error().Err(err).Str("service", svc.Name()).Msg("all notification retries failed")
			}
		}(s)
	}
}

// Wait blocks until background sends complete or ctx ends.
func (m *MultiNotifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver sends to every provider concurrently and waits. It returns how many
// providers accepted the message and the joined errors of those that did
// not. Providers skipped for cooldown count as neither.
func (m *MultiNotifier) Deliver(ctx context.Context, title, message string) (int, error) {
	now := time.Now()
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
		errs      []error
	)
	for _, s := range m.services {
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			sent, err := m.deliverOne(ctx, svc, title, message, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", svc.Name(), err))
			} else if sent {
				delivered++
			}
		}(s)
	}
	wg.Wait()
	return delivered, errors.Join(errs...)
}

func (m *MultiNotifier) deliverOne(ctx context.Context, svc Service, title, message string, now time.Time) (bool, error) {
	name := svc.Name()
	if m.coolingDown(name, now) {
		logging.Get().Warn().Str("service", name).Msg("skipping notification due to cooldown")
		return false, nil
	}
	if err := m.sendWithRetries(ctx, svc, title, message); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MultiNotifier) sendWithRetries(ctx context.Context, s Service, title, message string) error {
	name := s.Name()
	var lastErr error
	for attempt := 1; attempt <= m.retries; attempt++ {
		err := s.Send(ctx, title, message)
		if err == nil {
			m.mu.Lock()
			m.lastSent[name] = time.Now()
			m.mu.Unlock()
			logging.Get().Debug().Str("service", name).Msg("notification sent")
			return nil
		}
		lastErr = err
		logging.Get().Warn().Err(err).Str("service", name).Int("attempt", attempt).Msg("notification attempt failed")
		if attempt == m.retries {
			break
		}
		slept := make(chan struct{})
		d := m.backoffDuration(attempt)
		go func() {
			m.sleep(d)
			close(slept)
		}()
		select {
		case <-slept:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (m *MultiNotifier) backoffDuration(attempt int) time.Duration {
	d := m.baseBackoff * time.Duration(1<<uint(attempt-1))
	if m.jitter > 0 {
		if n, err := crand.Int(crand.Reader, big.NewInt(int64(m.jitter))); err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

var httpClient = &http.Client{Timeout: sendTimeout}

// postJSON posts data and fails on any non-2xx status. headers may be nil.
func postJSON(ctx context.Context, url string, data any, headers map[string]string) error {
	b, err := json.Marshal(data)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", Agent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}
	return nil
}
