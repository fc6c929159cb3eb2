package metric

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRegistryHandlerServesMetrics(t *testing.T) {
	r := NewRegistry()
	r.RequestsTotal.WithLabelValues("Received").Inc()
	r.RequestDuration.WithLabelValues("Received").Observe(0.05)
	r.RetriesTotal.Inc()
	r.FanoutDuration.Observe(1.2)
	r.ClusterNodes.Set(3)
	r.RaftIsLeader.Set(1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "clustercomm_requests_total") {
		t.Error("missing clustercomm_requests_total in scrape output")
	}
	if !strings.Contains(body, `status="Received"`) {
		t.Error("missing status label in scrape output")
	}
	if !strings.Contains(body, "clustercomm_cluster_nodes 3") {
		t.Error("missing cluster_nodes gauge value in scrape output")
	}
}

func TestCollectorReportsLiveSample(t *testing.T) {
	count := 0
	c := NewCollector("clustercomm_test_sample", "test sample", func() float64 { return float64(count) })

	r := NewRegistry()
	r.MustRegister(c)
	count = 7

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.Handler().ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), "clustercomm_test_sample 7") {
		t.Errorf("scrape output missing live sample: %s", w.Body.String())
	}
}
