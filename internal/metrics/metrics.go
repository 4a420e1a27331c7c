package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citybed_search_requests_total", Help: "Total searches by outcome.",
	}, []string{"status"})
	SearchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "citybed_search_results",
		Help:    "Number of results returned per search.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 10),
	})
	ResultCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citybed_result_cache_hits_total", Help: "Searches answered from the result cache.",
	})

	LoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "citybed_load_duration_seconds",
		Help:    "Time to build a snapshot, by origin (cache or source).",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"origin"})
	LoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "citybed_load_failures_total", Help: "Snapshot loads that failed.",
	})
	SnapshotVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "citybed_snapshot_version", Help: "Version of the snapshot currently served.",
	})
	SkippedRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citybed_skipped_records_total", Help: "Malformed source lines skipped, by table.",
	}, []string{"table"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "citybed_http_requests_total", Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
)
