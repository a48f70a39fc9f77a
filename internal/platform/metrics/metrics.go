package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the donut marker service.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       *prometheus.CounterVec
	errorsTotal         prometheus.Counter
	iconsRenderedTotal  *prometheus.CounterVec
	invalidStatsTotal   prometheus.Counter
	zoomChangesTotal    prometheus.Counter
	markersPlacedTotal  prometheus.Counter
	markersRemovedTotal prometheus.Counter
	iconRadius          prometheus.Histogram
	activeMarkers       prometheus.Gauge
	zoomSubscriptions   prometheus.Gauge
}

// New creates and registers Prometheus metrics for the service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donut_requests_total",
			Help: "Total number of HTTP requests received, by method",
		}, []string{"method"}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donut_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		iconsRenderedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donut_icons_rendered_total",
			Help: "Total number of donut icons rendered, by trigger",
		}, []string{"trigger"}),
		invalidStatsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donut_invalid_stats_total",
			Help: "Total number of stat sets rejected as invalid input",
		}),
		zoomChangesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donut_zoom_changes_total",
			Help: "Total number of zoom-end events applied to maps",
		}),
		markersPlacedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donut_markers_placed_total",
			Help: "Total number of markers placed",
		}),
		markersRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "donut_markers_removed_total",
			Help: "Total number of markers removed, including those on deleted maps",
		}),
		iconRadius: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "donut_icon_radius_px",
			Help:    "Outer radius of rendered icons in pixels",
			Buckets: []float64{8, 12, 18, 24, 36, 48, 72},
		}),
		activeMarkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "donut_active_markers",
			Help: "Number of markers currently placed across all maps",
		}),
		zoomSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "donut_zoom_subscriptions",
			Help: "Number of live zoom-change subscriptions across all maps",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.iconsRenderedTotal,
		m.invalidStatsTotal,
		m.zoomChangesTotal,
		m.markersPlacedTotal,
		m.markersRemovedTotal,
		m.iconRadius,
		m.activeMarkers,
		m.zoomSubscriptions,
	)
	return m
}

// IncRequests increments the request counter for method.
func (m *Metrics) IncRequests(method string) {
	m.requestsTotal.WithLabelValues(method).Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// AddIconsRendered adds n rendered icons under trigger ("preview", "place", "zoom").
func (m *Metrics) AddIconsRendered(trigger string, n int) {
	m.iconsRenderedTotal.WithLabelValues(trigger).Add(float64(n))
}

// ObserveIconRadius records the outer radius of a rendered icon.
func (m *Metrics) ObserveIconRadius(px float64) {
	m.iconRadius.Observe(px)
}

// IncInvalidStats increments the invalid stat set counter.
func (m *Metrics) IncInvalidStats() {
	m.invalidStatsTotal.Inc()
}

// IncZoomChanges increments the zoom change counter.
func (m *Metrics) IncZoomChanges() {
	m.zoomChangesTotal.Inc()
}

// IncMarkersPlaced increments the markers placed counter.
func (m *Metrics) IncMarkersPlaced() {
	m.markersPlacedTotal.Inc()
}

// AddMarkersRemoved adds n to the markers removed counter.
func (m *Metrics) AddMarkersRemoved(n int) {
	m.markersRemovedTotal.Add(float64(n))
}

// SetActiveMarkers sets the active markers gauge.
func (m *Metrics) SetActiveMarkers(n int) {
	m.activeMarkers.Set(float64(n))
}

// SetZoomSubscriptions sets the zoom subscriptions gauge.
func (m *Metrics) SetZoomSubscriptions(n int) {
	m.zoomSubscriptions.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
