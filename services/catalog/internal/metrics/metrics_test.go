package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Lookup("hit")
	m.Enriched(3, true)
	m.UpstreamError("GetOwnedGames")
	m.Cache(true)
}

func TestCounters(t *testing.T) {
	m := New()
	m.Lookup("hit")
	m.Lookup("hit")
	m.Lookup("miss")
	m.Enriched(5, false)
	m.Enriched(2, true)

	if got := testutil.ToFloat64(m.lookups.WithLabelValues("hit")); got != 2 {
		t.Fatalf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.enrichedGames); got != 7 {
		t.Fatalf("expected 7 enriched games, got %v", got)
	}
	if got := testutil.ToFloat64(m.enrichDegraded); got != 1 {
		t.Fatalf("expected 1 degraded join, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.UpstreamError("ResolveVanityURL")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `catalog_upstream_errors_total{endpoint="ResolveVanityURL"} 1`) {
		t.Fatalf("expected upstream error counter in output")
	}
}
