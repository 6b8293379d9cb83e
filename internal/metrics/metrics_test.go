package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("/portfolio/balance", 200, 20*time.Millisecond)
	m.ObserveRequest("/portfolio/balance", 200, 30*time.Millisecond)
	m.ObserveRequest("/markets/KXBTC-25", 404, time.Millisecond)
	m.ObserveRequest("/markets/KXETH-25?x=1", 404, time.Millisecond)

	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("/portfolio/balance", "200")); got != 2 {
		t.Errorf("balance requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.apiRequests.WithLabelValues("/markets/{ticker}", "404")); got != 2 {
		t.Errorf("market requests = %v, want 2", got)
	}
}

func TestObserveSyncAndTask(t *testing.T) {
	m := New()
	m.ObserveSync("fills", 12, time.Second, nil)
	m.ObserveSync("fills", 0, time.Second, errors.New("boom"))
	m.ObserveIntegrityIssue("settlement")
	m.ObserveTask("snapshot", time.Second, nil)
	m.ObserveRetry("/portfolio/fills")

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sync ok", testutil.ToFloat64(m.syncRuns.WithLabelValues("fills", "ok")), 1},
		{"sync error", testutil.ToFloat64(m.syncRuns.WithLabelValues("fills", "error")), 1},
		{"inserted", testutil.ToFloat64(m.syncInserted.WithLabelValues("fills")), 12},
		{"integrity", testutil.ToFloat64(m.integrityErrs.WithLabelValues("settlement")), 1},
		{"task", testutil.ToFloat64(m.taskRuns.WithLabelValues("snapshot", "ok")), 1},
		{"retries", testutil.ToFloat64(m.apiRetries.WithLabelValues("/portfolio/fills")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET /api/analytics/roi", "GET", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "kalshi_tracker_http_requests_total") {
		t.Error("exposition missing kalshi_tracker_http_requests_total")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing runtime collector")
	}
}
