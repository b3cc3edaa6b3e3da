// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Cycle metrics
	CyclesTotal      prometheus.Counter
	CycleDuration    prometheus.Histogram
	CandidatesSeen   prometheus.Counter
	CandidateOutcome *prometheus.CounterVec

	// Trade metrics
	TradesTotal   *prometheus.CounterVec
	TradeAttempts prometheus.Histogram
	InvestedUsd   prometheus.Counter
	ProceedsUsd   prometheus.Counter

	// Position metrics
	PositionsOpen    prometheus.Gauge
	PositionsClosed  prometheus.Counter
	PositionsFailed  prometheus.Counter
	RealizedMultiple prometheus.Histogram

	// Budget metrics
	BudgetCommittedUsd prometheus.Gauge
	BudgetPendingUsd   prometheus.Gauge

	// Tracking metrics
	TicksTotal    prometheus.Counter
	TickDuration  prometheus.Histogram
	PriceFailures prometheus.Counter

	// External call metrics
	RPCCallLatency *prometheus.HistogramVec
	APICallErrors  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "trading_engine"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Total number of trading cycles run",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Trading cycle duration",
			Buckets:   prometheus.DefBuckets,
		}),
		CandidatesSeen: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidates_seen_total",
			Help:      "Total number of candidates evaluated",
		}),
		CandidateOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "candidate_outcome_total",
			Help:      "Total number of candidates by cycle outcome",
		}, []string{"outcome"}),

		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trades_total",
			Help:      "Total number of trades by direction and status",
		}, []string{"direction", "status"}),
		TradeAttempts: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "trade_attempts",
			Help:      "Swap attempts per trade",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		InvestedUsd: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "invested_usd_total",
			Help:      "Total USD invested in confirmed buys",
		}),
		ProceedsUsd: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "proceeds_usd_total",
			Help:      "Total USD realized from confirmed sells",
		}),

		PositionsOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Current number of non-terminal positions",
		}),
		PositionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closed_total",
			Help:      "Total number of positions closed at take-profit",
		}),
		PositionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "failed_total",
			Help:      "Total number of positions that never opened",
		}),
		RealizedMultiple: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "realized_multiple",
			Help:      "Exit price over entry price for closed positions",
			Buckets:   []float64{0.5, 1, 2, 3, 4, 5, 10},
		}),

		BudgetCommittedUsd: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "committed_usd",
			Help:      "USD committed against today's cap",
		}),
		BudgetPendingUsd: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "budget",
			Name:      "pending_usd",
			Help:      "USD reserved but not yet committed",
		}),

		TicksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "ticks_total",
			Help:      "Total number of tracking ticks run",
		}),
		TickDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "tick_duration_seconds",
			Help:      "Tracking tick duration",
			Buckets:   prometheus.DefBuckets,
		}),
		PriceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tracker",
			Name:      "price_failures_total",
			Help:      "Total number of price lookups that returned no price",
		}),

		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency by method",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		APICallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "external",
			Name:      "api_call_errors_total",
			Help:      "Total number of external API errors by service",
		}, []string{"service"}),
	}
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle records one finished trading cycle.
func RecordCycle(durationSeconds float64, candidates int) {
	DefaultMetrics.CyclesTotal.Inc()
	DefaultMetrics.CycleDuration.Observe(durationSeconds)
	DefaultMetrics.CandidatesSeen.Add(float64(candidates))
}

// RecordCandidateOutcome increments the per-outcome candidate counter.
func RecordCandidateOutcome(outcome string) {
	DefaultMetrics.CandidateOutcome.WithLabelValues(outcome).Inc()
}

// RecordTrade records a finished trade.
func RecordTrade(direction, status string, attempts int, filledUsd float64) {
	DefaultMetrics.TradesTotal.WithLabelValues(direction, status).Inc()
	DefaultMetrics.TradeAttempts.Observe(float64(attempts))
	if status == "CONFIRMED" {
		switch direction {
		case "BUY":
			DefaultMetrics.InvestedUsd.Add(filledUsd)
		case "SELL":
			DefaultMetrics.ProceedsUsd.Add(filledUsd)
		}
	}
}

// RecordTick records one finished tracking tick.
func RecordTick(durationSeconds float64, open, closed int) {
	DefaultMetrics.TicksTotal.Inc()
	DefaultMetrics.TickDuration.Observe(durationSeconds)
	DefaultMetrics.PositionsOpen.Set(float64(open - closed))
	DefaultMetrics.PositionsClosed.Add(float64(closed))
}

// RecordPositionClosed records a realized exit.
func RecordPositionClosed(multiple float64) {
	DefaultMetrics.RealizedMultiple.Observe(multiple)
}

// UpdateBudget updates the budget gauges.
func UpdateBudget(committedUsd, pendingUsd float64) {
	DefaultMetrics.BudgetCommittedUsd.Set(committedUsd)
	DefaultMetrics.BudgetPendingUsd.Set(pendingUsd)
}

// RecordPriceFailure increments the failed price lookup counter.
func RecordPriceFailure() {
	DefaultMetrics.PriceFailures.Inc()
}

// RecordRPCLatency records Solana RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// RecordAPIError records an external API failure.
func RecordAPIError(service string) {
	DefaultMetrics.APICallErrors.WithLabelValues(service).Inc()
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
