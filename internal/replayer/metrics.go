package replayer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	blocksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "blocks_processed_total",
		Help:      "Blocks fully replayed and committed, per stream.",
	}, []string{"stream"})

	txsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexer",
		Name:      "transactions_processed_total",
		Help:      "Manage-entity transactions replayed, by outcome.",
	}, []string{"stream", "outcome"})

	blockProcessSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexer",
		Name:      "block_process_seconds",
		Help:      "Wall time to replay and commit one block.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stream"})
)

const (
	outcomeApplied  = "applied"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)
