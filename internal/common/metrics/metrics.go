package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	PriceResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_resolutions_total",
			Help: "Resolutions by outcome kind and fallback tier",
		},
		[]string{"outcome", "tier"},
	)

	PriceResolutionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "price_resolution_duration_seconds",
			Help:    "End-to-end resolution latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	RemoteFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remote_fetch_total",
			Help: "Remote price source calls by status (ok, empty, error, cache_hit)",
		},
		[]string{"status"},
	)

	StoreQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_queries_total",
			Help: "Record store queries by query name",
		},
		[]string{"query"},
	)

	BackfillStoreCalls = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backfill_store_calls",
			Help:    "Store calls spent by one historical backfill walk",
			Buckets: []float64{1, 2, 3, 5, 7, 10, 15, 30, 60, 90},
		},
	)

	NameIndexEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "name_index_entries",
			Help: "Entries in the current name index snapshot",
		},
		[]string{"kind"},
	)
)
