package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/evaluation"
	"github.com/feedbacklens/backend/pkg/logger"
)

// EvaluationHandler exposes aggregate evaluation results.
type EvaluationHandler struct {
	store evaluation.StatusStore
}

func NewEvaluationHandler(store evaluation.StatusStore) *EvaluationHandler {
	return &EvaluationHandler{store: store}
}

func (h *EvaluationHandler) HandleStatus(c *fiber.Ctx) error {
	report, err := evaluation.BuildStatus(h.store)
	if err != nil {
		logger.Error("Failed to build evaluation status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load evaluation status",
		})
	}
	return c.JSON(report)
}
