// Package metrics registers the Prometheus instruments for the matching
// pipeline. Everything is registered once at init and exported as package
// variables; handlers and engines record into them directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MatchRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "talent_match_requests_total",
		Help: "Number of match requests served.",
	})

	MatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "talent_match_duration_seconds",
		Help:    "End-to-end match latency including recall and ranking.",
		Buckets: prometheus.DefBuckets,
	})

	// RecallFailures counts per-channel recall errors that were degraded
	// rather than surfaced, labeled channel=lexical|vector.
	RecallFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talent_recall_failures_total",
		Help: "Recall channel failures absorbed by graceful degradation.",
	}, []string{"channel"})

	IndexBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talent_index_builds_total",
		Help: "Index build attempts, labeled result=built|skipped|failed.",
	}, []string{"result"})

	ResumesIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talent_resumes_ingested_total",
		Help: "Ingested resumes, labeled outcome=created|merged|duplicate.",
	}, []string{"outcome"})

	EmbeddingCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "talent_embedding_cache_total",
		Help: "Embedding cache lookups, labeled result=hit|miss.",
	}, []string{"result"})
)
