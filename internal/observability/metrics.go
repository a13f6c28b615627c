// Package observability holds the prometheus collectors of the raster I/O and
// evaluation paths.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tileOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazyraster_tile_ops_total",
			Help: "Tile reads and writes by outcome.",
		},
		[]string{"op", "outcome"},
	)

	tileBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazyraster_tile_bytes_total",
			Help: "Encoded tile bytes moved to or from storage.",
		},
		[]string{"op"},
	)

	chunkDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazyraster_chunk_task_duration_seconds",
			Help:    "Duration of chunk task execution in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~8s
		},
		[]string{"kind", "outcome"},
	)

	chunkCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lazyraster_chunk_cache_results_total",
			Help: "Chunk cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	storeOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lazyraster_store_op_duration_seconds",
			Help:    "Duration of remote store operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op", "outcome"},
	)

	lockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lazyraster_sink_lock_wait_seconds",
			Help:    "Time spent waiting for the write lock before a chunk write.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
	)
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveTile records one tile operation ("read", "write", "fill").
func ObserveTile(op string, size int, err error) {
	tileOpsTotal.WithLabelValues(op, outcome(err)).Inc()
	if err == nil && size > 0 {
		tileBytesTotal.WithLabelValues(op).Add(float64(size))
	}
}

func ObserveChunk(kind string, err error, durationSeconds float64) {
	chunkDurationSeconds.WithLabelValues(kind, outcome(err)).Observe(durationSeconds)
}

func ObserveChunkCache(hit bool) {
	if hit {
		chunkCacheResults.WithLabelValues("hit").Inc()
		return
	}
	chunkCacheResults.WithLabelValues("miss").Inc()
}

func ObserveLockWait(durationSeconds float64) {
	lockWaitSeconds.Observe(durationSeconds)
}

// ObserveStoreOp records a call against a remote store backend.
func ObserveStoreOp(backend, op string, err error, durationSeconds float64) {
	storeOpSeconds.WithLabelValues(backend, op, outcome(err)).Observe(durationSeconds)
}
