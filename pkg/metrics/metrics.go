// Package metrics records pipeline activity as Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scottring/family-planner-sub006/pkg/capture"
)

const namespace = "family_capture"

// Recorder implements capture.Recorder on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	captures    *prometheus.CounterVec
	analyzers   *prometheus.CounterVec
	analyzerDur *prometheus.HistogramVec
	ocr         *prometheus.CounterVec
	conversions *prometheus.CounterVec
	pipeline    *prometheus.HistogramVec
}

var _ capture.Recorder = (*Recorder)(nil)

// New creates a Recorder with its own registry, including the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Captures accepted, by input channel and whether the analysis was degraded.",
		}, []string{"channel", "degraded"}),
		analyzers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyzer_runs_total",
			Help:      "Analyzer invocations by analyzer and outcome.",
		}, []string{"analyzer", "outcome"}),
		analyzerDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analyzer_duration_seconds",
			Help:      "Time spent in each analyzer.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"analyzer"}),
		ocr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_runs_total",
			Help:      "OCR runs by outcome.",
		}, []string{"outcome"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Conversion attempts by target type and outcome.",
		}, []string{"type", "outcome"}),
		pipeline: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "End-to-end time from envelope to stored analysis.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}
	r.registry.MustRegister(
		r.captures, r.analyzers, r.analyzerDur, r.ocr, r.conversions, r.pipeline,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry exposes the private registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveAnalyzer(name, outcome string, d time.Duration) {
	r.analyzers.WithLabelValues(name, outcome).Inc()
	r.analyzerDur.WithLabelValues(name).Observe(d.Seconds())
}

func (r *Recorder) ObserveCapture(channel string, d time.Duration, degraded bool) {
	r.captures.WithLabelValues(channel, strconv.FormatBool(degraded)).Inc()
	r.pipeline.WithLabelValues("capture").Observe(d.Seconds())
}

func (r *Recorder) ObserveOCR(outcome string, d time.Duration) {
	r.ocr.WithLabelValues(outcome).Inc()
	r.pipeline.WithLabelValues("ocr").Observe(d.Seconds())
}

func (r *Recorder) ObserveConversion(target, outcome string) {
	r.conversions.WithLabelValues(target, outcome).Inc()
}
