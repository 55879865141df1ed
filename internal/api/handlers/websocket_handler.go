package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/insights"
	"github.com/feedbacklens/backend/internal/storage/sqlite"
	"github.com/feedbacklens/backend/pkg/logger"
)

// WebSocketHandler is the websocket transport for streaming analysis.
// Frames are identical to the SSE variant's.
type WebSocketHandler struct {
	db           *sqlite.Client
	orchestrator *analysis.Orchestrator
	writer       *insights.Writer
}

func NewWebSocketHandler(db *sqlite.Client, orchestrator *analysis.Orchestrator, writer *insights.Writer) *WebSocketHandler {
	return &WebSocketHandler{
		db:           db,
		orchestrator: orchestrator,
		writer:       writer,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type string `json:"type"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "analyze" {
			continue
		}

		h.runAnalysis(c)
	}
}

func (h *WebSocketHandler) runAnalysis(c *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), streamRunTimeout)
	defer cancel()

	chunks, err := h.db.ListChunks()
	if err != nil {
		logger.Error("Failed to load chunks for websocket stream", zap.Error(err))
		c.WriteJSON(Frame{Type: "error", Message: "Failed to load feedback data"})
		return
	}
	if len(chunks) == 0 {
		c.WriteJSON(Frame{Type: "error", Message: "No feedback data has been uploaded yet"})
		return
	}

	c.WriteJSON(Frame{Type: "progress", Progress: 0, Message: "Starting analysis"})

	result, err := h.orchestrator.RunStreaming(ctx, chunks, func(p analysis.Progress) {
		c.WriteJSON(Frame{Type: "progress", Progress: p.Percent, Message: p.Message})
	})
	if err != nil {
		logger.Error("WebSocket analysis failed", zap.Error(err))
		c.WriteJSON(Frame{Type: "error", Message: "Analysis failed"})
		return
	}

	if _, err := h.writer.Persist(ctx, result); err != nil {
		logger.Error("Failed to persist websocket insights", zap.Error(err))
		c.WriteJSON(Frame{Type: "error", Message: "Failed to store analysis results"})
		return
	}

	c.WriteJSON(Frame{Type: "complete", Message: "Analysis complete", Progress: 100, Data: result})
}
