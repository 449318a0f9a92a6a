// Package metrics declares the prometheus collectors for the chain, the
// mempool, mining and the web layer. Collectors register with the default
// registry and are exposed by the debug mux under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nakamoto"

// Chain collectors.
var (
	BlocksAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_accepted_total",
		Help:      "Blocks inserted into the chain tree by source.",
	}, []string{"source"})

	BlocksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blocks_rejected_total",
		Help:      "Blocks refused by the chain tree or the ledger rules.",
	}, []string{"reason"})

	ChainHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_height",
		Help:      "Height of the resolved tip.",
	})

	ChainTips = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "chain_tips",
		Help:      "Number of tips in the chain tree.",
	})

	Reorgs = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reorgs_total",
		Help:      "Times the resolved tip moved to a different branch.",
	})

	ReorgDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reorg_depth",
		Help:      "Blocks dropped from the resolved branch on a reorg.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13},
	})

	BalanceCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "balance_cache_total",
		Help:      "Balance replay cache lookups by result.",
	}, []string{"result"})
)

// Mempool and mining collectors.
var (
	MempoolSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mempool_size",
		Help:      "Transactions waiting to be mined.",
	})

	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_rejected_total",
		Help:      "Transactions refused at admission by reason.",
	}, []string{"reason"})

	MiningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mining_duration_seconds",
		Help:      "Time spent in a proof of work search that found a block.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	})

	MiningCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mining_cancelled_total",
		Help:      "Proof of work searches interrupted by a peer block.",
	})

	WithheldBlocks = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "withheld_blocks",
		Help:      "Blocks mined on a private branch and not yet published.",
	})
)

// Web collectors.
var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method and status.",
	}, []string{"method", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	Panics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Handler panics recovered by the middleware.",
	})
)
