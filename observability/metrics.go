package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	saleMetricsOnce sync.Once
	saleRegistry    *SaleMetrics

	oracleMetricsOnce sync.Once
	oracleRegistry    *OracleMetrics
)

// SaleMetrics bundles collectors tracking contribution flow health.
type SaleMetrics struct {
	contributions *prometheus.CounterVec
	usdVolume     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	throttles     *prometheus.CounterVec
	currentRound  prometheus.Gauge
}

// Sale returns the lazily-initialised metrics registry for the sale engine.
func Sale() *SaleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			contributions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lava",
				Subsystem: "sale",
				Name:      "contributions_total",
				Help:      "Count of contribution attempts segmented by payment asset and outcome.",
			}, []string{"asset", "outcome"}),
			usdVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lava",
				Subsystem: "sale",
				Name:      "usd_volume_total",
				Help:      "Accepted contribution volume in integer USD micro units per asset.",
			}, []string{"asset"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lava",
				Subsystem: "sale",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for sale operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lava",
				Subsystem: "sale",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"reason"}),
			currentRound: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lava",
				Subsystem: "sale",
				Name:      "current_round",
				Help:      "Identifier of the round contributions are currently priced against.",
			}),
		}
		prometheus.MustRegister(
			saleRegistry.contributions,
			saleRegistry.usdVolume,
			saleRegistry.latency,
			saleRegistry.throttles,
			saleRegistry.currentRound,
		)
	})
	return saleRegistry
}

// ObserveContribution records the outcome of one contribution attempt. The USD
// amount is only counted when the contribution succeeded.
func (m *SaleMetrics) ObserveContribution(asset string, usdAmount uint64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	label := labelAsset(asset)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.contributions.WithLabelValues(label, outcome).Inc()
	if err == nil {
		m.usdVolume.WithLabelValues(label).Add(float64(usdAmount))
	}
	m.latency.WithLabelValues("contribute").Observe(duration.Seconds())
}

// ObserveOperation records the latency of a non-contribution operation such as
// round advancement or finalisation.
func (m *SaleMetrics) ObserveOperation(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied reason.
// Reasons should be stable strings such as "rate_limit" so dashboards and
// alerts remain consistent.
func (m *SaleMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// SetCurrentRound updates the current round gauge.
func (m *SaleMetrics) SetCurrentRound(id uint8) {
	if m == nil {
		return
	}
	m.currentRound.Set(float64(id))
}

// OracleMetrics bundles collectors for the price feed poller.
type OracleMetrics struct {
	fetches   *prometheus.CounterVec
	freshness *prometheus.GaugeVec
	price     *prometheus.GaugeVec
}

// Oracle returns the metrics registry for oracle price sourcing.
func Oracle() *OracleMetrics {
	oracleMetricsOnce.Do(func() {
		oracleRegistry = &OracleMetrics{
			fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lava",
				Subsystem: "oracle",
				Name:      "fetches_total",
				Help:      "Count of upstream quote fetches segmented by source and outcome.",
			}, []string{"source", "outcome"}),
			freshness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lava",
				Subsystem: "oracle",
				Name:      "quote_age_seconds",
				Help:      "Age in seconds of the most recent quote held for a pair.",
			}, []string{"pair"}),
			price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "lava",
				Subsystem: "oracle",
				Name:      "quote_price",
				Help:      "Latest fixed-point quote price for a pair.",
			}, []string{"pair"}),
		}
		prometheus.MustRegister(oracleRegistry.fetches, oracleRegistry.freshness, oracleRegistry.price)
	})
	return oracleRegistry
}

// RecordFetch increments the fetch counter for a source.
func (m *OracleMetrics) RecordFetch(source string, err error) {
	if m == nil {
		return
	}
	src := strings.TrimSpace(source)
	if src == "" {
		src = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(src, outcome).Inc()
}

// RecordQuote updates the freshness and price gauges for a pair.
func (m *OracleMetrics) RecordQuote(pair string, price int64, age time.Duration) {
	if m == nil {
		return
	}
	label := strings.ToUpper(strings.TrimSpace(pair))
	if label == "" {
		label = "UNKNOWN"
	}
	m.freshness.WithLabelValues(label).Set(age.Seconds())
	m.price.WithLabelValues(label).Set(float64(price))
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}
