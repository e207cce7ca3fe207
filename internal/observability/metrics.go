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
	// Listener metrics
	PoolsDetected  prometheus.Counter
	MarketsCached  prometheus.Counter
	WalletUpdates  prometheus.Counter
	ListenerErrors *prometheus.CounterVec

	// Admission metrics
	BuyAdmissions *prometheus.CounterVec
	SellsInFlight prometheus.Gauge

	// Qualification and exit metrics
	FilterRounds  *prometheus.CounterVec
	ExitDecisions *prometheus.CounterVec

	// Execution metrics
	SwapAttempts   *prometheus.CounterVec
	SwapLatency    *prometheus.HistogramVec
	RPCCallLatency *prometheus.HistogramVec

	// Trade metrics
	ActiveTrades  prometheus.Gauge
	TradesClosed  *prometheus.CounterVec
	JournalErrors prometheus.Counter
	Balance       prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_sniper"
	}

	return &Metrics{
		// Listener metrics
		PoolsDetected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "pools_detected_total",
			Help:      "Total number of fresh pools handed to the buy pipeline",
		}),
		MarketsCached: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "markets_cached_total",
			Help:      "Total number of OpenBook markets cached",
		}),
		WalletUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "wallet_updates_total",
			Help:      "Total number of wallet token account changes",
		}),
		ListenerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "listener",
			Name:      "errors_total",
			Help:      "Total number of undecodable notifications by stream",
		}, []string{"stream"}),

		// Admission metrics
		BuyAdmissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "buy_admissions_total",
			Help:      "Total number of buy admission decisions by outcome",
		}, []string{"outcome"}),
		SellsInFlight: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "sells_in_flight",
			Help:      "Current number of running sell pipelines",
		}),

		// Qualification and exit metrics
		FilterRounds: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "filter_rounds_total",
			Help:      "Total number of filter evaluations by result",
		}, []string{"result"}),
		ExitDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "exit_decisions_total",
			Help:      "Total number of exit loop outcomes by signal",
		}, []string{"signal"}),

		// Execution metrics
		SwapAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "swap_attempts_total",
			Help:      "Total number of swap attempts by direction and outcome",
		}, []string{"direction", "outcome"}),
		SwapLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "swap_duration_seconds",
			Help:      "Time from quote to confirmation verdict",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 90},
		}, []string{"direction"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "rpc_call_duration_seconds",
			Help:      "RPC call latency in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),

		// Trade metrics
		ActiveTrades: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "active",
			Help:      "Current number of tracked trades",
		}),
		TradesClosed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "closed_total",
			Help:      "Total number of trades closed by reason",
		}, []string{"reason"}),
		JournalErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "journal_errors_total",
			Help:      "Total number of failed journal appends",
		}),
		Balance: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trades",
			Name:      "balance_raw",
			Help:      "Last known wallet balance in raw quote units",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPoolDetected increments the detected pools counter.
func RecordPoolDetected() {
	DefaultMetrics.PoolsDetected.Inc()
}

// RecordMarketCached increments the cached markets counter.
func RecordMarketCached() {
	DefaultMetrics.MarketsCached.Inc()
}

// RecordWalletUpdate increments the wallet updates counter.
func RecordWalletUpdate() {
	DefaultMetrics.WalletUpdates.Inc()
}

// RecordListenerError records an undecodable notification.
func RecordListenerError(stream string) {
	DefaultMetrics.ListenerErrors.WithLabelValues(stream).Inc()
}

// RecordBuyAdmission records an admission decision.
func RecordBuyAdmission(admitted bool) {
	outcome := "rejected"
	if admitted {
		outcome = "admitted"
	}
	DefaultMetrics.BuyAdmissions.WithLabelValues(outcome).Inc()
}

// UpdateSellsInFlight sets the running sells gauge.
func UpdateSellsInFlight(n int) {
	DefaultMetrics.SellsInFlight.Set(float64(n))
}

// RecordFilterRound records one filter evaluation.
func RecordFilterRound(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	DefaultMetrics.FilterRounds.WithLabelValues(result).Inc()
}

// RecordExitDecision records how an exit loop ended.
func RecordExitDecision(signal string) {
	DefaultMetrics.ExitDecisions.WithLabelValues(signal).Inc()
}

// RecordSwap records one swap attempt.
func RecordSwap(direction, outcome string, seconds float64) {
	DefaultMetrics.SwapAttempts.WithLabelValues(direction, outcome).Inc()
	DefaultMetrics.SwapLatency.WithLabelValues(direction).Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}

// UpdateActiveTrades sets the tracked trades gauge.
func UpdateActiveTrades(n int) {
	DefaultMetrics.ActiveTrades.Set(float64(n))
}

// RecordTradeClosed records a closed trade.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
}

// RecordJournalError increments the journal error counter.
func RecordJournalError() {
	DefaultMetrics.JournalErrors.Inc()
}

// UpdateBalance sets the balance gauge.
func UpdateBalance(raw uint64) {
	DefaultMetrics.Balance.Set(float64(raw))
}
