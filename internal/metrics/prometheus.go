package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AnalysisDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feedbacklens_analysis_duration_seconds",
			Help:    "Full analysis run duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	)

	AnalysisRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_analysis_runs_total",
			Help: "Total analysis runs",
		},
		[]string{"mode", "status"},
	)

	LLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_llm_calls_total",
			Help: "Total LLM completion calls",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	InsightsWritten = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_insights_written_total",
			Help: "Insight rows written, by insight type suffix",
		},
		[]string{"kind"},
	)

	InsightsEvaluated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_insights_evaluated_total",
			Help: "Insights evaluated by the background worker",
		},
		[]string{"relevance", "hallucination"},
	)

	EvaluationTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_evaluation_ticks_total",
			Help: "Evaluation worker ticks",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedbacklens_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	DocumentsIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbacklens_documents_ingested_total",
			Help: "Total documents ingested",
		},
	)

	ChunksIngested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "feedbacklens_chunks_ingested_total",
			Help: "Total feedback chunks ingested",
		},
	)
)

func Init() {
	prometheus.MustRegister(AnalysisDuration)
	prometheus.MustRegister(AnalysisRuns)
	prometheus.MustRegister(LLMCalls)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(InsightsWritten)
	prometheus.MustRegister(InsightsEvaluated)
	prometheus.MustRegister(EvaluationTicks)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(ChunksIngested)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
