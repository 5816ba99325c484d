// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_queries_processed_total",
			Help: "Total number of natural-language queries processed",
		},
		[]string{"outcome"},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "querydesk_pipeline_stage_duration_seconds",
			Help: "Duration of each pipeline stage",
		},
		[]string{"stage"},
	)

	TableQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_table_queries_total",
			Help: "Per-table datastore queries by result",
		},
		[]string{"table", "result"},
	)

	EntitiesTagged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_entities_tagged_total",
			Help: "Entities recognized by the span tagger, by kind",
		},
		[]string{"kind"},
	)

	DomainCacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_domain_cache_refreshes_total",
			Help: "Domain value cache load attempts by result",
		},
		[]string{"result"},
	)

	DomainCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "querydesk_domain_cache_entries",
			Help: "Number of canonical entries in the domain value cache",
		},
	)

	ResultCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querydesk_result_cache_requests_total",
			Help: "Result cache lookups by outcome",
		},
		[]string{"outcome"},
	)
)
