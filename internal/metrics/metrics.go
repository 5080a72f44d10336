// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting growthctl client metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Internal counters back the JSON snapshot; Prometheus collectors mirror them.
var (
	apiRequests        int64
	apiFailures        int64
	authFailures       int64
	logins             int64
	loginFailures      int64
	logouts            int64
	notificationFetch  int64
	notificationHits   int64
	notificationShared int64
	relayPasses        int64
	relayed            int64
	relayFailures      int64
	lastRelay          int64
)

const counterInc int64 = 1

var (
	promRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthctl_api_requests_total",
			Help: "API requests by method and response status class",
		},
		[]string{"method", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "growthctl_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method"},
	)
	promAuthFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growthctl_auth_failures_total",
			Help: "Responses that invalidated the session (HTTP 401)",
		},
	)
	promLogins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthctl_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)
	promLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growthctl_logouts_total",
			Help: "Explicit logouts",
		},
	)
	promNotificationFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "growthctl_notification_fetches_total",
			Help: "Notification list lookups by list and outcome (network, cache, shared)",
		},
		[]string{"list", "source"},
	)
	promRelayPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growthctl_relay_passes_total",
			Help: "Relay polling passes started",
		},
	)
	promRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growthctl_relayed_notifications_total",
			Help: "Notifications forwarded to push targets",
		},
	)
	promRelayFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "growthctl_relay_failures_total",
			Help: "Relay passes that could not fetch notifications",
		},
	)
	promLastRelay = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "growthctl_relay_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last relay pass",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promRequests,
		promRequestDuration,
		promAuthFailures,
		promLogins,
		promLogouts,
		promNotificationFetches,
		promRelayPasses,
		promRelayed,
		promRelayFailures,
		promLastRelay,
	)
}

// ObserveRequest records one completed API call. status 0 means no response
// was received.
func ObserveRequest(method string, status int, d time.Duration) {
	atomic.AddInt64(&apiRequests, counterInc)
	if status == 0 || status >= 400 {
		atomic.AddInt64(&apiFailures, counterInc)
	}
	promRequests.WithLabelValues(method, statusClass(status)).Inc()
	promRequestDuration.WithLabelValues(method).Observe(d.Seconds())
}

func statusClass(status int) string {
	if status == 0 {
		return "network"
	}
	return strconv.Itoa(status/100) + "xx"
}

func IncAuthFailure() {
	atomic.AddInt64(&authFailures, counterInc)
	promAuthFailures.Inc()
}

func IncLogin() {
	atomic.AddInt64(&logins, counterInc)
	promLogins.WithLabelValues("success").Inc()
}

func IncLoginFailure() {
	atomic.AddInt64(&loginFailures, counterInc)
	promLogins.WithLabelValues("failure").Inc()
}

func IncLogout() {
	atomic.AddInt64(&logouts, counterInc)
	promLogouts.Inc()
}

// IncNotificationFetch counts a lookup that went to the network.
func IncNotificationFetch(list string) {
	atomic.AddInt64(&notificationFetch, counterInc)
	promNotificationFetches.WithLabelValues(list, "network").Inc()
}

// IncNotificationCacheHit counts a lookup served from the cache.
func IncNotificationCacheHit(list string) {
	atomic.AddInt64(&notificationHits, counterInc)
	promNotificationFetches.WithLabelValues(list, "cache").Inc()
}

// IncNotificationShared counts a caller that joined an in-flight fetch.
func IncNotificationShared(list string) {
	atomic.AddInt64(&notificationShared, counterInc)
	promNotificationFetches.WithLabelValues(list, "shared").Inc()
}

func IncRelayPass() {
	atomic.AddInt64(&relayPasses, counterInc)
	promRelayPasses.Inc()
}

func AddRelayed(n int) {
	atomic.AddInt64(&relayed, int64(n))
	promRelayed.Add(float64(n))
}

func IncRelayFailure() {
	atomic.AddInt64(&relayFailures, counterInc)
	promRelayFailures.Inc()
}

// SetLastRelay stores the time of the last relay pass.
func SetLastRelay(t time.Time) {
	atomic.StoreInt64(&lastRelay, t.Unix())
	promLastRelay.Set(float64(t.Unix()))
}

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	APIRequests         int64  `json:"api_requests"`
	APIFailures         int64  `json:"api_failures"`
	AuthFailures        int64  `json:"auth_failures"`
	Logins              int64  `json:"logins"`
	LoginFailures       int64  `json:"login_failures"`
	Logouts             int64  `json:"logouts"`
	NotificationFetches int64  `json:"notification_fetches"`
	NotificationHits    int64  `json:"notification_cache_hits"`
	NotificationShared  int64  `json:"notification_shared_fetches"`
	RelayPasses         int64  `json:"relay_passes"`
	Relayed             int64  `json:"relayed"`
	RelayFailures       int64  `json:"relay_failures"`
	LastRelay           int64  `json:"last_relay_timestamp"`
	LastRelayHuman      string `json:"last_relay_human"`
}

// GetSnapshot returns the current values of all internal counters.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastRelay)
	human := ""
	if ts > 0 {
		human = time.Unix(ts, 0).Format(time.RFC3339)
	}
	return StatsSnapshot{
		APIRequests:         atomic.LoadInt64(&apiRequests),
		APIFailures:         atomic.LoadInt64(&apiFailures),
		AuthFailures:        atomic.LoadInt64(&authFailures),
		Logins:              atomic.LoadInt64(&logins),
		LoginFailures:       atomic.LoadInt64(&loginFailures),
		Logouts:             atomic.LoadInt64(&logouts),
		NotificationFetches: atomic.LoadInt64(&notificationFetch),
		NotificationHits:    atomic.LoadInt64(&notificationHits),
		NotificationShared:  atomic.LoadInt64(&notificationShared),
		RelayPasses:         atomic.LoadInt64(&relayPasses),
		Relayed:             atomic.LoadInt64(&relayed),
		RelayFailures:       atomic.LoadInt64(&relayFailures),
		LastRelay:           ts,
		LastRelayHuman:      human,
	}
}

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler serves the current metrics as a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}

// NewMux wires /metrics and /status onto a fresh mux.
func NewMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", PromHandler())
	mux.Handle("/status", JSONHandler())
	return mux
}
