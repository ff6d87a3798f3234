// Package metrics bundles Prometheus metrics for frame corrections and the HTTP surface
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the metrics.  It satisfies nonlinear.Recorder
type Collector struct {
	gatherer prometheus.Gatherer

	PixelsCorrected    prometheus.Counter
	FramesCorrected    prometheus.Counter
	SolveFailures      prometheus.Counter
	CorrectionDuration prometheus.Histogram
	HTTPRequests       *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.  Registering twice against one registry
// returns the existing collectors
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	pixels, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nonlinear_pixels_corrected_total",
		Help: "Total number of pixels passed through the non-linearity correction.",
	}), "nonlinear_pixels_corrected_total")
	if err != nil {
		return nil, err
	}
	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nonlinear_frames_corrected_total",
		Help: "Total number of frames successfully corrected.",
	}), "nonlinear_frames_corrected_total")
	if err != nil {
		return nil, err
	}
	failures, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nonlinear_solve_failures_total",
		Help: "Total number of frames abandoned because a pixel had no real root.",
	}), "nonlinear_solve_failures_total")
	if err != nil {
		return nil, err
	}

	var duration prometheus.Histogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nonlinear_correction_duration_seconds",
		Help:    "Wall time to correct one frame.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	})
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Histogram)
		if !ok {
			return nil, fmt.Errorf("collector nonlinear_correction_duration_seconds already registered with incompatible type")
		}
		duration = existing
	}

	var requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by route pattern and status code.",
	}, []string{"route", "code"})
	if err := reg.Register(requests); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("collector http_requests_total already registered with incompatible type")
		}
		requests = existing
	}

	return &Collector{
		gatherer:           gatherer,
		PixelsCorrected:    pixels,
		FramesCorrected:    frames,
		SolveFailures:      failures,
		CorrectionDuration: duration,
		HTTPRequests:       requests,
	}, nil
}

// ObserveCorrection records a corrected frame
func (c *Collector) ObserveCorrection(pixels int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.PixelsCorrected.Add(float64(pixels))
	c.FramesCorrected.Inc()
	c.CorrectionDuration.Observe(elapsed.Seconds())
}

// ObserveSolveFailure records a frame that could not be corrected
func (c *Collector) ObserveSolveFailure() {
	if c == nil {
		return
	}
	c.SolveFailures.Inc()
}

// ObserveRequest records an HTTP request
func (c *Collector) ObserveRequest(route string, code int) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Middleware counts requests by chi route pattern and status code
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		c.ObserveRequest(route, status)
	})
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
