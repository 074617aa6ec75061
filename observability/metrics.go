package observability

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "nhbmarket/market"

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	marketMetricsOnce sync.Once
	marketRegistry    *MarketMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method, and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nhbmarket",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected due to throttling policies.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. A zero code means success;
// anything else is the JSON-RPC error code written to the client.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied module and
// reason. Reasons should be stable strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// MarketMetrics tracks marketplace operations and the value they move.
type MarketMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	volume     prometheus.Counter
	fees       prometheus.Counter
	refunds    prometheus.Counter
	rulings    *prometheus.CounterVec

	// OTLP mirror of operations, exported when telemetry is configured.
	otelOps metric.Int64Counter
}

// Market returns the singleton marketplace metrics registry.
func Market() *MarketMetrics {
	marketMetricsOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "operations_total",
				Help:      "Count of marketplace operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for marketplace operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			volume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "sales_volume_total",
				Help:      "Sum of sale prices settled by the marketplace.",
			}),
			fees: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "fees_total",
				Help:      "Sum of platform fees collected by the operator.",
			}),
			refunds: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "refunds_total",
				Help:      "Sum of escrow amounts refunded to buyers by the operator.",
			}),
			rulings: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nhbmarket",
				Subsystem: "market",
				Name:      "dispute_rulings_total",
				Help:      "Count of dispute resolutions segmented by ruling.",
			}, []string{"ruling"}),
		}
		marketRegistry.otelOps = newOTelCounter("market.operations", "Marketplace operations by outcome.")
		prometheus.MustRegister(
			marketRegistry.operations,
			marketRegistry.latency,
			marketRegistry.volume,
			marketRegistry.fees,
			marketRegistry.refunds,
			marketRegistry.rulings,
		)
	})
	return marketRegistry
}

// Observe records the outcome and latency of a marketplace operation.
func (m *MarketMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
	if m.otelOps != nil {
		m.otelOps.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		))
	}
}

func newOTelCounter(name, description string) metric.Int64Counter {
	counter, err := otel.Meter(meterName).Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

// RecordSale adds a settled sale to the volume and fee counters.
func (m *MarketMetrics) RecordSale(price, fee *big.Int) {
	if m == nil {
		return
	}
	m.volume.Add(bigToFloat(price))
	m.fees.Add(bigToFloat(fee))
}

// RecordRuling counts a dispute resolution. Refunded is nil for seller rulings.
func (m *MarketMetrics) RecordRuling(ruling string, refunded *big.Int) {
	if m == nil {
		return
	}
	if ruling == "" {
		ruling = "unknown"
	}
	m.rulings.WithLabelValues(ruling).Inc()
	if refunded != nil {
		m.refunds.Add(bigToFloat(refunded))
	}
}

func bigToFloat(value *big.Int) float64 {
	if value == nil || value.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
