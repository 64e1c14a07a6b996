package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueriesRouted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsage_queries_routed_total",
			Help: "Total queries routed, by resolved intent",
		},
		[]string{"intent"},
	)

	BranchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "docsage_branch_duration_seconds",
			Help:    "End-to-end handling duration per intent branch",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"intent"},
	)

	VectorResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docsage_vector_results_count",
			Help:    "Number of vector matches surviving filters per query",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	StreamChunks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "docsage_stream_chunks_total",
			Help: "Total response chunks emitted",
		},
	)

	DegradedResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsage_degraded_responses_total",
			Help: "Responses that degraded due to a collaborator failure, by stage",
		},
		[]string{"stage"},
	)

	FileActionsExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsage_file_actions_executed_total",
			Help: "File management actions executed",
		},
		[]string{"action", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsage_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsage_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(QueriesRouted)
	prometheus.MustRegister(BranchDuration)
	prometheus.MustRegister(VectorResults)
	prometheus.MustRegister(StreamChunks)
	prometheus.MustRegister(DegradedResponses)
	prometheus.MustRegister(FileActionsExecuted)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
