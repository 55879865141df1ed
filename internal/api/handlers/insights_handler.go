package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/grouping"
	"github.com/feedbacklens/backend/internal/insights"
	"github.com/feedbacklens/backend/pkg/logger"
)

// InsightsHandler serves stored insights and triggers quote grouping.
type InsightsHandler struct {
	store   insights.ViewStore
	grouper *grouping.Grouper
}

func NewInsightsHandler(store insights.ViewStore, grouper *grouping.Grouper) *InsightsHandler {
	return &InsightsHandler{store: store, grouper: grouper}
}

// HandleList returns the latest analysis run merged with any grouped insights.
func (h *InsightsHandler) HandleList(c *fiber.Ctx) error {
	view, err := insights.BuildView(h.store)
	if err != nil {
		logger.Error("Failed to build insights view", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load insights",
		})
	}
	return c.JSON(view)
}

// HandleGroup regenerates grouped insights for the latest run. The operation
// is idempotent: previous grouped rows are replaced wholesale.
func (h *InsightsHandler) HandleGroup(c *fiber.Ctx) error {
	if err := h.grouper.Regenerate(c.Context()); err != nil {
		logger.Error("Quote grouping failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to group insights",
		})
	}

	view, err := insights.BuildView(h.store)
	if err != nil {
		logger.Error("Failed to rebuild view after grouping", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load insights",
		})
	}

	return c.JSON(view)
}
