package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.Exports.WithLabelValues("fines", "pdf", "report").Inc()

	if got := testutil.ToFloat64(a.Exports.WithLabelValues("fines", "pdf", "report")); got != 1 {
		t.Errorf("a exports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(b.Exports.WithLabelValues("fines", "pdf", "report")); got != 0 {
		t.Errorf("b exports = %v, want 0", got)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.OpenViews.Set(3)
	m.StaleResponses.WithLabelValues("certificates").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"ihttstats_listing_open_views 3",
		`ihttstats_listing_stale_responses_total{resource="certificates"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
