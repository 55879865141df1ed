package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/ingestion"
	"github.com/feedbacklens/backend/pkg/logger"
)

// DocumentHandler accepts feedback documents for chunking and indexing.
type DocumentHandler struct {
	processor *ingestion.Processor
}

func NewDocumentHandler(processor *ingestion.Processor) *DocumentHandler {
	return &DocumentHandler{processor: processor}
}

type uploadRequest struct {
	Name       string `json:"name"`
	SourceType string `json:"source_type"`
	Content    string `json:"content"`
}

func (h *DocumentHandler) HandleUpload(c *fiber.Ctx) error {
	var req uploadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document name is required",
		})
	}
	if strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document content is required",
		})
	}

	fileID, chunkCount, err := h.processor.ProcessDocument(c.Context(), req.Name, req.SourceType, req.Content)
	if err != nil {
		logger.Error("Document ingestion failed",
			zap.String("name", req.Name),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process document",
		})
	}

	logger.Info("Document ingested",
		zap.String("file_id", fileID),
		zap.Int("chunks", chunkCount))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"file_id": fileID,
		"chunks":  chunkCount,
	})
}
