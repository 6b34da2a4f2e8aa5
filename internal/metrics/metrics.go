// Package metrics provides Prometheus metrics for the promptline daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	nativeToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptline_native_tool_duration_seconds",
			Help:    "Native helper invocation duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"tool", "subcommand", "outcome"},
	)

	directoryDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptline_directory_detections_total",
			Help: "Background directory detections by outcome",
		},
		[]string{"outcome"},
	)

	fileCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptline_file_cache_requests_total",
			Help: "File cache lookups by result",
		},
		[]string{"result"},
	)

	symbolSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptline_symbol_searches_total",
			Help: "Symbol searches by cache result",
		},
		[]string{"result"},
	)

	windowShows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptline_window_shows_total",
			Help: "Window show requests by window handling",
		},
		[]string{"handling"},
	)

	rendererEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptline_renderer_events_total",
			Help: "Events published to the renderer by channel",
		},
		[]string{"channel"},
	)

	eventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptline_event_subscribers",
			Help: "Number of connected event stream subscribers",
		},
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveNativeTool records one native helper call.
func ObserveNativeTool(tool, subcommand, outcome string, d time.Duration) {
	nativeToolDuration.WithLabelValues(tool, subcommand, outcome).Observe(d.Seconds())
}

// RecordDetection records a background detection outcome
// ("updated", "unchanged", "failed", "superseded").
func RecordDetection(outcome string) {
	directoryDetections.WithLabelValues(outcome).Inc()
}

// RecordFileCache records a file cache lookup ("hit", "miss", "stale").
func RecordFileCache(result string) {
	fileCacheRequests.WithLabelValues(result).Inc()
}

// RecordSymbolSearch records whether a symbol search was served from cache.
func RecordSymbolSearch(result string) {
	symbolSearches.WithLabelValues(result).Inc()
}

// RecordWindowShow records whether a show request reused or recreated the window.
func RecordWindowShow(handling string) {
	windowShows.WithLabelValues(handling).Inc()
}

// RecordRendererEvent counts a published renderer event.
func RecordRendererEvent(channel string) {
	rendererEvents.WithLabelValues(channel).Inc()
}

// SetEventSubscribers sets the current subscriber gauge.
func SetEventSubscribers(n int) {
	eventSubscribers.Set(float64(n))
}
