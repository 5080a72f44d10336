package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsCounters(t *testing.T) {
	before := GetSnapshot()

	ObserveRequest("GET", 200, 20*time.Millisecond)
	ObserveRequest("POST", 401, 10*time.Millisecond)
	ObserveRequest("GET", 0, time.Second)
	IncAuthFailure()
	IncLogin()
	IncLoginFailure()
	IncLogout()
	IncNotificationFetch("unread")
	IncNotificationCacheHit("unread")
	IncNotificationShared("all")
	AddRelayed(3)
	IncRelayFailure()
	SetLastRelay(time.Unix(123456789, 0))

	after := GetSnapshot()
	if after.APIRequests != before.APIRequests+3 {
		t.Fatalf("expected 3 more requests, got %d -> %d", before.APIRequests, after.APIRequests)
	}
	if after.APIFailures != before.APIFailures+2 {
		t.Fatalf("expected 2 more failures (401 + network), got %d -> %d", before.APIFailures, after.APIFailures)
	}
	if after.AuthFailures != before.AuthFailures+1 || after.Logouts != before.Logouts+1 {
		t.Fatalf("unexpected auth counters: %+v", after)
	}
	if after.Logins != before.Logins+1 || after.LoginFailures != before.LoginFailures+1 {
		t.Fatalf("unexpected login counters: %+v", after)
	}
	if after.NotificationFetches != before.NotificationFetches+1 ||
		after.NotificationHits != before.NotificationHits+1 ||
		after.NotificationShared != before.NotificationShared+1 {
		t.Fatalf("unexpected notification counters: %+v", after)
	}
	if after.Relayed != before.Relayed+3 || after.RelayFailures != before.RelayFailures+1 {
		t.Fatalf("unexpected relay counters: %+v", after)
	}
	if after.LastRelay != 123456789 || after.LastRelayHuman == "" {
		t.Fatalf("unexpected last relay: %d %q", after.LastRelay, after.LastRelayHuman)
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{0: "network", 200: "2xx", 204: "2xx", 401: "4xx", 422: "4xx", 503: "5xx"}
	for in, want := range cases {
		if got := statusClass(in); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestMuxServesStatus(t *testing.T) {
	srv := httptest.NewServer(NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap StatsSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode status: %v", err)
	}

	resp2, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	body, _ := io.ReadAll(resp2.Body)
	if !strings.Contains(string(body), "growthctl_api_requests_total") {
		t.Fatal("expected growthctl collectors in /metrics output")
	}
}

func TestPushToInflux(t *testing.T) {
	var gotAuth, gotBody, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	pushToInflux(context.Background(), srv.Client(), influxWriteURL(srv.URL, "org one", "b"), "tok", time.Unix(100, 0))

	if gotAuth != "Token tok" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if !strings.Contains(gotQuery, "org=org+one") || !strings.Contains(gotQuery, "bucket=b") {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if !strings.HasPrefix(gotBody, "growthctl ") || !strings.HasSuffix(gotBody, " 100") {
		t.Fatalf("unexpected line protocol %q", gotBody)
	}
}
