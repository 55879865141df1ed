package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/insights"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/internal/storage/sqlite"
	"github.com/feedbacklens/backend/pkg/logger"
	"github.com/feedbacklens/backend/pkg/utils"
)

// AnalysisCache is the aggregate-result cache consumed by the sync
// analysis path; satisfied by *redis.Client.
type AnalysisCache interface {
	GetAnalysis(ctx context.Context, chunkSetHash string) (*analysis.Result, bool, error)
	SetAnalysis(ctx context.Context, chunkSetHash string, result *analysis.Result, ttl time.Duration) error
}

type AnalysisHandler struct {
	db            *sqlite.Client
	orchestrator  *analysis.Orchestrator
	writer        *insights.Writer
	cache         AnalysisCache
	skipThreshold int
	cacheTTL      time.Duration
}

func NewAnalysisHandler(db *sqlite.Client, orchestrator *analysis.Orchestrator, writer *insights.Writer, cache AnalysisCache, skipThreshold int, cacheTTL time.Duration) *AnalysisHandler {
	return &AnalysisHandler{
		db:            db,
		orchestrator:  orchestrator,
		writer:        writer,
		cache:         cache,
		skipThreshold: skipThreshold,
		cacheTTL:      cacheTTL,
	}
}

// HandleAnalyze runs the synchronous analysis variant. An unchanged
// chunk set is served from cache without touching the LLM; oversized
// inputs with no prior results get the canned fallback instead of
// blocking the request on a full pass.
func (h *AnalysisHandler) HandleAnalyze(c *fiber.Ctx) error {
	chunks, err := h.db.ListChunks()
	if err != nil {
		logger.Error("Failed to load chunks", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load feedback data",
		})
	}

	if len(chunks) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "No feedback data has been uploaded yet",
		})
	}

	if cached, ok := h.cachedResult(c, chunks); ok {
		metrics.AnalysisRuns.WithLabelValues("sync", "cached").Inc()
		return c.JSON(cached)
	}

	if len(chunks) > h.skipThreshold {
		if result, ok := h.oversizedFallback(chunks); ok {
			metrics.AnalysisRuns.WithLabelValues("sync", "skipped").Inc()
			return c.JSON(result)
		}
	}

	start := time.Now()
	result, err := h.orchestrator.Run(c.Context(), chunks)
	if err != nil {
		logger.Error("Analysis run failed", zap.Error(err))
		metrics.AnalysisRuns.WithLabelValues("sync", "error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Analysis failed",
		})
	}
	metrics.AnalysisDuration.WithLabelValues("sync").Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues("sync", "ok").Inc()

	if _, err := h.writer.Persist(c.Context(), result); err != nil {
		logger.Error("Failed to persist insights", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store analysis results",
		})
	}

	h.cacheResult(c, chunks, result)

	return c.JSON(result)
}

// cachedResult serves a prior aggregate when the chunk set is
// unchanged since it was cached.
func (h *AnalysisHandler) cachedResult(c *fiber.Ctx, chunks []models.Chunk) (*analysis.Result, bool) {
	if h.cache == nil {
		return nil, false
	}
	cached, hit, err := h.cache.GetAnalysis(c.Context(), chunkSetHash(chunks))
	if err != nil {
		logger.Warn("Analysis cache lookup failed", zap.Error(err))
		return nil, false
	}
	return cached, hit
}

// oversizedFallback decides whether an oversized corpus can be served
// the demo aggregates: only when no prior run exists.
func (h *AnalysisHandler) oversizedFallback(chunks []models.Chunk) (*analysis.Result, bool) {
	runID, err := h.db.LatestRunID()
	if err != nil {
		logger.Warn("Failed to check for prior results", zap.Error(err))
		return nil, false
	}
	if runID != "" {
		return nil, false
	}

	logger.Info("Serving fallback aggregates",
		zap.Int("chunks", len(chunks)),
		zap.Int("threshold", h.skipThreshold),
	)
	return analysis.FallbackResult(), true
}

func (h *AnalysisHandler) cacheResult(c *fiber.Ctx, chunks []models.Chunk, result *analysis.Result) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetAnalysis(c.Context(), chunkSetHash(chunks), result, h.cacheTTL); err != nil {
		logger.Warn("Failed to cache analysis result", zap.Error(err))
	}
}

func chunkSetHash(chunks []models.Chunk) string {
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		ids[i] = ch.ID
	}
	return utils.HashStrings(ids)
}
