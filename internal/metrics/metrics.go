// Package metrics exposes Prometheus instrumentation for import runs and the API.
//
// Metrics:
//
//	guidepost_import_runs_total{status}         counter: finished runs by outcome
//	guidepost_import_duration_seconds           histogram: run wall time
//	guidepost_import_items_total{counter}       counter: run summary counters
//	guidepost_last_import_timestamp_seconds     gauge: end of the last successful run
//	guidepost_image_breaker_open                gauge: 1 when the image breaker latched
//	guidepost_http_requests_total{method,path,status}
//	guidepost_http_request_duration_seconds{method,path}
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the registered collectors
type Recorder struct {
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	items         *prometheus.CounterVec
	lastSuccess   prometheus.Gauge
	breakerOpen   prometheus.Gauge
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Registering twice on the same
// registry panics.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	r := &Recorder{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guidepost_import_runs_total",
			Help: "Finished import runs by status.",
		}, []string{"status"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "guidepost_import_duration_seconds",
			Help:    "Import run duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guidepost_import_items_total",
			Help: "Import summary counters accumulated over runs.",
		}, []string{"counter"}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "guidepost_last_import_timestamp_seconds",
			Help: "Unix time the last successful import finished.",
		}),
		breakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "guidepost_image_breaker_open",
			Help: "1 when image downloads were stopped by the failure budget.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guidepost_http_requests_total",
			Help: "HTTP requests handled by the API.",
		}, []string{"method", "path", "status"}),
		httpDurations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guidepost_http_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		r.gatherer = g
	}
	return r
}

var (
	defaultOnce sync.Once
	defaultRec  *Recorder
)

// Default returns the recorder registered on the default Prometheus registry
func Default() *Recorder {
	defaultOnce.Do(func() {
		defaultRec = New(prometheus.DefaultRegisterer)
	})
	return defaultRec
}

// ObserveRun records one finished import. counters is the run summary.
func (r *Recorder) ObserveRun(counters map[string]int, duration time.Duration, breakerOpen bool, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	r.runs.WithLabelValues(status).Inc()
	r.runDuration.Observe(duration.Seconds())

	for name, v := range counters {
		if v > 0 {
			r.items.WithLabelValues(name).Add(float64(v))
		}
	}

	if breakerOpen {
		r.breakerOpen.Set(1)
	} else {
		r.breakerOpen.Set(0)
	}
	if err == nil {
		r.lastSuccess.SetToCurrentTime()
	}
}

// ObserveRequest records one API request
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	r.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	r.httpDurations.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the scrape handler for the recorder's registry
func (r *Recorder) Handler() http.Handler {
	if r.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
