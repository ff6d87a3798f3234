package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nasa-jpl/wfc3ir/nonlinear"
)

var _ nonlinear.Recorder = (*Collector)(nil)

func TestObserveCorrection(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	c.ObserveCorrection(1014*1014, 250*time.Millisecond)
	c.ObserveCorrection(10, time.Millisecond)
	c.ObserveSolveFailure()

	if got := testutil.ToFloat64(c.PixelsCorrected); got != 1014*1014+10 {
		t.Fatalf("nonlinear_pixels_corrected_total = %v, want %v", got, 1014*1014+10)
	}
	if got := testutil.ToFloat64(c.FramesCorrected); got != 2 {
		t.Fatalf("nonlinear_frames_corrected_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.SolveFailures); got != 1 {
		t.Fatalf("nonlinear_solve_failures_total = %v, want 1", got)
	}
}

func TestNewCollectorTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	a.ObserveSolveFailure()
	if got := testutil.ToFloat64(b.SolveFailures); got != 1 {
		t.Fatalf("expected shared counter, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.ObserveCorrection(1, time.Second)
	c.ObserveSolveFailure()
	c.ObserveRequest("/x", 200)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	c.ObserveRequest("/exposure-time", http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `http_requests_total{code="200",route="/exposure-time"} 1`) {
		t.Errorf("expected request counter in body, got:\n%s", body)
	}
}

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/dq/{flag}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "flag") == "bad" {
			http.Error(w, "bad", http.StatusBadRequest)
			return
		}
		w.Write([]byte("ok"))
	})
	for _, path := range []string{"/dq/16", "/dq/8192", "/dq/bad"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/dq/{flag}", "200")); got != 2 {
		t.Errorf("200 count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.HTTPRequests.WithLabelValues("/dq/{flag}", "400")); got != 1 {
		t.Errorf("400 count = %v, want 1", got)
	}
}
