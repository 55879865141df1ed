package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/insights"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/storage/sqlite"
	"github.com/feedbacklens/backend/pkg/logger"
)

const (
	keepaliveInterval = 15 * time.Second
	streamRunTimeout  = 10 * time.Minute
)

// Frame is one server-sent event in the streaming analysis variant.
// The websocket transport sends the same shape.
type Frame struct {
	Type     string           `json:"type"`
	Message  string           `json:"message,omitempty"`
	Progress int              `json:"progress,omitempty"`
	Data     *analysis.Result `json:"data,omitempty"`
}

type StreamHandler struct {
	db           *sqlite.Client
	orchestrator *analysis.Orchestrator
	writer       *insights.Writer
}

func NewStreamHandler(db *sqlite.Client, orchestrator *analysis.Orchestrator, writer *insights.Writer) *StreamHandler {
	return &StreamHandler{
		db:           db,
		orchestrator: orchestrator,
		writer:       writer,
	}
}

// HandleStream runs the streaming analysis variant over SSE. A client
// disconnect stops frame delivery; in-flight LLM calls are allowed to
// complete and their results are simply never delivered.
func (h *StreamHandler) HandleStream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		h.stream(w)
	}))

	return nil
}

func (h *StreamHandler) stream(w *bufio.Writer) {
	frames := make(chan Frame, 16)
	done := make(chan struct{})
	defer close(done)

	go h.runAnalysis(frames, done)

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if !writeFrame(w, frame) {
				return
			}
			if frame.Type == "complete" || frame.Type == "error" {
				return
			}
		case <-keepalive.C:
			if !writeFrame(w, Frame{Type: "keepalive"}) {
				return
			}
		}
	}
}

// runAnalysis drives the streaming orchestrator variant and turns its
// progress into frames. The request context is not used: the batch
// loop is deliberately not aborted on client disconnect. Frames are
// dropped once done closes so a gone reader never blocks the run
// before Persist.
func (h *StreamHandler) runAnalysis(frames chan<- Frame, done <-chan struct{}) {
	defer close(frames)

	ctx, cancel := context.WithTimeout(context.Background(), streamRunTimeout)
	defer cancel()

	emit := func(frame Frame) {
		select {
		case frames <- frame:
		case <-done:
		}
	}

	chunks, err := h.db.ListChunks()
	if err != nil {
		logger.Error("Failed to load chunks for stream", zap.Error(err))
		emit(Frame{Type: "error", Message: "Failed to load feedback data"})
		return
	}
	if len(chunks) == 0 {
		emit(Frame{Type: "error", Message: "No feedback data has been uploaded yet"})
		return
	}

	emit(Frame{Type: "progress", Progress: 0, Message: "Starting analysis"})

	start := time.Now()
	result, err := h.orchestrator.RunStreaming(ctx, chunks, func(p analysis.Progress) {
		emit(Frame{Type: "progress", Progress: p.Percent, Message: p.Message})
	})
	if err != nil {
		logger.Error("Streaming analysis failed", zap.Error(err))
		metrics.AnalysisRuns.WithLabelValues("stream", "error").Inc()
		emit(Frame{Type: "error", Message: "Analysis failed"})
		return
	}
	metrics.AnalysisDuration.WithLabelValues("stream").Observe(time.Since(start).Seconds())
	metrics.AnalysisRuns.WithLabelValues("stream", "ok").Inc()

	if _, err := h.writer.Persist(ctx, result); err != nil {
		logger.Error("Failed to persist streamed insights", zap.Error(err))
		emit(Frame{Type: "error", Message: "Failed to store analysis results"})
		return
	}

	emit(Frame{Type: "complete", Message: "Analysis complete", Progress: 100, Data: result})
}

func writeFrame(w *bufio.Writer, frame Frame) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		return false
	}
	if _, err := w.WriteString("data: " + string(payload) + "\n\n"); err != nil {
		return false
	}
	return w.Flush() == nil
}
