package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveRequest("GET", 200, 10*time.Millisecond)
	c.ObserveRequest("GET", 200, 20*time.Millisecond)
	c.ObserveRequest("POST", 401, time.Millisecond)

	if got := testutil.ToFloat64(c.requests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("GET 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.requests.WithLabelValues("POST", "401")); got != 1 {
		t.Errorf("POST 401 = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(c.latency); got != 2 {
		t.Errorf("latency series = %d, want 2", got)
	}
}

func TestRecordDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordDecision("read_account", true)
	c.RecordDecision("read_account", false)
	c.RecordDecision("read_account", false)

	if got := testutil.ToFloat64(c.decisions.WithLabelValues("read_account", "deny")); got != 2 {
		t.Errorf("deny = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.decisions.WithLabelValues("read_account", "allow")); got != 1 {
		t.Errorf("allow = %v, want 1", got)
	}
}

func TestRecordVerificationAndActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordVerification("issued")
	c.RecordVerification("issued")
	c.RecordActivity("user_login")

	if got := testutil.ToFloat64(c.verification.WithLabelValues("issued")); got != 2 {
		t.Errorf("issued = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.activity.WithLabelValues("user_login")); got != 1 {
		t.Errorf("user_login = %v, want 1", got)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordVerification("confirmed")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `tally_verification_events_total{event="confirmed"} 1`) {
		t.Errorf("metrics output missing verification counter:\n%s", body)
	}
}
