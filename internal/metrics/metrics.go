// Package metrics exposes the service's Prometheus registry: a collector
// struct with typed Record methods, matching how this service's other
// components wrap their third-party clients.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector the service reports. Construct once at
// startup and pass by reference into the ingest loop, the fan-out hub, and
// the Sampler.
type Registry struct {
	reg *prometheus.Registry

	ParsedTotal             *prometheus.CounterVec
	BookLevels              *prometheus.GaugeVec
	BookUpdatesTotal        *prometheus.CounterVec
	BreakerState            *prometheus.GaugeVec
	BreakerTripsTotal       *prometheus.CounterVec
	WSClientsActive         prometheus.Gauge
	WSMessagesTotal         *prometheus.CounterVec
	MarkPriceComputedTotal  *prometheus.CounterVec
	MarkPriceFallbackTotal  *prometheus.CounterVec
}

func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		ParsedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_parser_records_total",
			Help: "Order-status records processed by the parser, partitioned by outcome.",
		}, []string{"outcome"}),
		BookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdfeed_book_levels",
			Help: "Resting price levels per market and side.",
		}, []string{"market", "side"}),
		BookUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_book_updates_total",
			Help: "Book mutations applied, per market.",
		}, []string{"market"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mdfeed_breaker_state",
			Help: "Circuit breaker state per market: 0=closed, 1=half-open, 2=open.",
		}, []string{"market"}),
		BreakerTripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_breaker_trips_total",
			Help: "Breaker open transitions, per market.",
		}, []string{"market"}),
		WSClientsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mdfeed_ws_clients_active",
			Help: "Currently connected WebSocket subscribers.",
		}),
		WSMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_ws_messages_total",
			Help: "Messages sent to WebSocket subscribers, per stream kind.",
		}, []string{"stream"}),
		MarkPriceComputedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_markprice_computed_total",
			Help: "Mark-price ticks computed, per market.",
		}, []string{"market"}),
		MarkPriceFallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mdfeed_markprice_fallback_total",
			Help: "Mark-price ticks that appended the mid-price EMA as a third median input, per market.",
		}, []string{"market"}),
	}

	reg.MustRegister(
		r.ParsedTotal,
		r.BookLevels,
		r.BookUpdatesTotal,
		r.BreakerState,
		r.BreakerTripsTotal,
		r.WSClientsActive,
		r.WSMessagesTotal,
		r.MarkPriceComputedTotal,
		r.MarkPriceFallbackTotal,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return r
}

// Handler serves the Prometheus exposition format for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordParsed increments the parser outcome counter ("success", "failure").
func (r *Registry) RecordParsed(outcome string) {
	r.ParsedTotal.WithLabelValues(outcome).Inc()
}

// RecordBookUpdate increments the per-market book mutation counter.
func (r *Registry) RecordBookUpdate(market string) {
	r.BookUpdatesTotal.WithLabelValues(market).Inc()
}

// ClientConnected/ClientDisconnected track the WebSocket hub's active
// subscriber gauge.
func (r *Registry) ClientConnected()    { r.WSClientsActive.Inc() }
func (r *Registry) ClientDisconnected() { r.WSClientsActive.Dec() }

// RecordWSMessage increments the per-stream message counter ("orderbook" or
// "markprice").
func (r *Registry) RecordWSMessage(stream string) {
	r.WSMessagesTotal.WithLabelValues(stream).Inc()
}

// RecordMarkPriceComputed increments the per-market mark-price tick
// counter, and the fallback counter when only two median inputs were present
// and the mid-price EMA was appended as the third.
func (r *Registry) RecordMarkPriceComputed(market string, usedFallback bool) {
	r.MarkPriceComputedTotal.WithLabelValues(market).Inc()
	if usedFallback {
		r.MarkPriceFallbackTotal.WithLabelValues(market).Inc()
	}
}
