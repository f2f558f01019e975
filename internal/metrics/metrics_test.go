package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCadenceDecisionCountsBlockReasons(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	m.CadenceDecision("warm", false, []string{"cooldown", "weekly_cap"})
	m.CadenceDecision("warm", true, nil)

	if got := testutil.ToFloat64(m.decisions.WithLabelValues("warm", "false")); got != 1 {
		t.Fatalf("expected 1 blocked decision, got %v", got)
	}
	if got := testutil.ToFloat64(m.blocks.WithLabelValues("weekly_cap")); got != 1 {
		t.Fatalf("expected 1 weekly_cap block, got %v", got)
	}
}

func TestNewReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New("test", reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := New("test", reg)
	if err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}

	first.Overadmission("hot")
	second.Overadmission("hot")

	if got := testutil.ToFloat64(first.overadmissions.WithLabelValues("hot")); got != 2 {
		t.Fatalf("expected shared counter at 2, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New("test", reg)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.QualificationSubmitted("hot", 91)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `test_qualification_submissions_total{tier="hot"} 1`) {
		t.Fatalf("submission counter missing from output:\n%s", rec.Body.String())
	}
}
