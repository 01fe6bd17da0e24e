package db

import "github.com/prometheus/client_golang/prometheus"

var (
	pre             = "swapmeet_store_"
	durationBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
)

// TxMetrics groups transaction metrics shared by every store implementation.
var TxMetrics = struct {
	Attempts  *prometheus.CounterVec
	Retries   *prometheus.CounterVec
	Exhausted *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
}{
	Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: pre + "tx_attempts_total",
		Help: "Transaction attempts, including retries.",
	}, []string{"store"}),
	Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: pre + "tx_retries_total",
		Help: "Transactions replayed after a serialization failure.",
	}, []string{"store"}),
	Exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: pre + "tx_exhausted_total",
		Help: "Transactions that gave up after the retry budget.",
	}, []string{"store"}),
	Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    pre + "tx_duration_seconds",
		Buckets: durationBuckets,
		Help:    "Wall time of a transaction including retries.",
	}, []string{"store", "outcome"}),
}

func init() {
	prometheus.MustRegister(
		TxMetrics.Attempts,
		TxMetrics.Retries,
		TxMetrics.Exhausted,
		TxMetrics.Duration,
	)
}
