// Package metrics provides Prometheus metrics for the collection tracker.
// Scrape these at /metrics for dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Extraction metrics
	OffersExtractedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardwatch_offers_extracted_total",
			Help: "Total number of offer rows successfully extracted",
		},
	)

	RowsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_rows_skipped_total",
			Help: "Listing rows skipped during extraction",
		},
		[]string{"field"},
	)

	ListingPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cardwatch_listing_pages_fetched_total",
			Help: "Listing pages fetched across all runs",
		},
	)

	// Rate cache metrics
	RateRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_rate_refresh_total",
			Help: "Rate cache refresh attempts by result",
		},
		[]string{"result"}, // "success", "failed", "skipped"
	)

	RateProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_rate_provider_failures_total",
			Help: "Rate provider fetch failures by provider",
		},
		[]string{"provider"},
	)

	RateAgeSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cardwatch_rate_age_seconds",
			Help: "Age of the cached rate per currency pair",
		},
		[]string{"pair"},
	)

	// Image resolution metrics
	ImageResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_image_resolutions_total",
			Help: "Detail-page image resolutions by result",
		},
		[]string{"result"}, // "resolved", "missing", "cached", "error"
	)

	// Pipeline metrics
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardwatch_pipeline_runs_total",
			Help: "Pipeline runs by result",
		},
		[]string{"result"}, // "success", "degraded", "fatal"
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cardwatch_pipeline_duration_seconds",
			Help:    "Time taken for one full pipeline run",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	// Snapshot metrics
	SnapshotCardCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardwatch_snapshot_card_count",
			Help: "Number of cards in the latest snapshot",
		},
	)

	SnapshotGradingCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardwatch_snapshot_grading_count",
			Help: "Number of grading entries in the latest snapshot",
		},
	)

	SnapshotTotalValueUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cardwatch_snapshot_total_value_usd",
			Help: "Page-reported collection value in USD from the latest snapshot",
		},
	)
)
