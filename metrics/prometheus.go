package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GlobalMetricsRegistry is the Prometheus metrics registry singleton that
// the package-level compile collectors (StageDuration, BundleCount) are
// registered with at package initialization. Nothing in this module serves
// it over HTTP.
var GlobalMetricsRegistry *prometheus.Registry

func init() {
	ResetGlobalMetricsRegistry()
}

// ResetGlobalMetricsRegistry resets GlobalMetricsRegistry to its default
// value. This is needed by unit tests that build many compilers and would
// otherwise try to register duplicate collectors in the registry.
func ResetGlobalMetricsRegistry() {
	GlobalMetricsRegistry = prometheus.NewRegistry()
	GlobalMetricsRegistry.MustRegister(prometheus.NewGoCollector())
}

// StageDuration is the histogram of wall-clock time spent in each named
// compile stage, exported under the bundler's Prometheus registry.
var StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "bundler",
	Subsystem: "compile",
	Name:      "stage_duration_seconds",
	Help:      "Time spent executing a single compile pipeline stage.",
	Buckets:   prometheus.DefBuckets,
}, []string{"stage"})

// BundleCount is a gauge of the bundle graph's bundle count after the most
// recent compile run.
var BundleCount = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "bundler",
	Subsystem: "compile",
	Name:      "bundles",
	Help:      "Number of bundles in the bundle graph produced by the most recent compile run.",
})

func init() {
	GlobalMetricsRegistry.MustRegister(StageDuration, BundleCount)
}
