package evaluation

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/pkg/logger"
)

// Store is the storage surface the worker needs. Row eligibility is
// purely "metadata.eval is absent"; there is no other lock.
type Store interface {
	QueryInsightsMissingEval(limit int) ([]models.Insight, error)
	UpdateInsightEval(id string, eval *models.Evaluation) error
	GetChunkContent(chunkID string) (string, error)
}

type Config struct {
	Configured    bool
	StartupDelay  time.Duration
	Interval      time.Duration
	PageSize      int
	SubBatchSize  int
	SubBatchPause time.Duration
	Temperature   float32
}

// Worker backfills an eval judgment onto every stored insight row that
// lacks one. It is re-entrant-guarded: a tick that starts while the
// previous one is still running is skipped, not queued.
type Worker struct {
	store   Store
	llm     llm.Completer
	cfg     Config
	running atomic.Bool
}

func NewWorker(store Store, client llm.Completer, cfg Config) *Worker {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.SubBatchSize <= 0 {
		cfg.SubBatchSize = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	return &Worker{
		store: store,
		llm:   client,
		cfg:   cfg,
	}
}

// Start runs the polling loop until ctx is cancelled. The first tick
// waits out the startup delay so dependent services can come up.
func (w *Worker) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.StartupDelay):
		}

		w.Tick(ctx)

		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.Tick(ctx)
			}
		}
	}()
}

// Tick processes one page of unevaluated rows. Safe to call directly;
// overlapping calls are skipped via the re-entrancy guard.
func (w *Worker) Tick(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		logger.Debug("Evaluation tick still running, skipping")
		metrics.EvaluationTicks.WithLabelValues("skipped").Inc()
		return
	}
	defer w.running.Store(false)

	if !w.cfg.Configured {
		return
	}

	page, err := w.store.QueryInsightsMissingEval(w.cfg.PageSize)
	if err != nil {
		logger.Error("Failed to fetch unevaluated insights", zap.Error(err))
		metrics.EvaluationTicks.WithLabelValues("error").Inc()
		return
	}
	if len(page) == 0 {
		metrics.EvaluationTicks.WithLabelValues("empty").Inc()
		return
	}

	tally := newTickTally()

	for lo := 0; lo < len(page); lo += w.cfg.SubBatchSize {
		hi := lo + w.cfg.SubBatchSize
		if hi > len(page) {
			hi = len(page)
		}

		var wg sync.WaitGroup
		for _, row := range page[lo:hi] {
			wg.Add(1)
			go func(row models.Insight) {
				defer wg.Done()
				w.evaluateRow(ctx, row, tally)
			}(row)
		}
		wg.Wait()

		if hi < len(page) && w.cfg.SubBatchPause > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.SubBatchPause):
			}
		}
	}

	metrics.EvaluationTicks.WithLabelValues("ok").Inc()
	tally.log(len(page))
}

func (w *Worker) evaluateRow(ctx context.Context, row models.Insight, tally *tickTally) {
	category := w.topicCategory(row)
	reference := w.referenceText(row, category)

	// Each judgment defaults to the optimistic outcome on failure: a
	// broken judge must never leave a row perpetually unevaluated.
	hallucination := w.judgeHallucination(ctx, category, reference, row.Content)
	relevance := w.judgeRelevance(ctx, category, row.Content)

	eval := &models.Evaluation{
		Relevance:     relevance,
		Hallucination: hallucination,
		EvaluatedAt:   time.Now().UTC(),
		Mode:          category,
	}

	if err := w.store.UpdateInsightEval(row.ID, eval); err != nil {
		logger.Error("Failed to write eval",
			zap.String("insight_id", row.ID),
			zap.Error(err),
		)
		tally.failure()
		return
	}

	metrics.InsightsEvaluated.WithLabelValues(relevance, hallucination).Inc()
	tally.record(category, relevance, hallucination)
}

func (w *Worker) topicCategory(row models.Insight) string {
	if topic, ok := prompts.TopicForInsightType(row.InsightType); ok {
		return topic.Name
	}
	if row.Metadata.Topic != "" {
		return row.Metadata.Topic
	}
	return "Unknown"
}

// referenceText chooses what the hallucination check compares the row
// against. Quotes are judged against their originating chunk; derived
// rows against the best available description of their frame.
func (w *Worker) referenceText(row models.Insight, category string) string {
	if strings.HasSuffix(row.InsightType, "_quote") && row.Metadata.ChunkID != "" {
		content, err := w.store.GetChunkContent(row.Metadata.ChunkID)
		if err == nil && content != "" {
			return content
		}
		logger.Debug("Chunk lookup failed for quote eval",
			zap.String("chunk_id", row.Metadata.ChunkID),
			zap.Error(err),
		)
	}

	if strings.HasSuffix(row.InsightType, "_quote") {
		return "Topic: " + category
	}

	if row.Metadata.Summary != "" {
		return row.Metadata.Summary
	}
	if row.Metadata.Topic != "" {
		return "Topic: " + row.Metadata.Topic
	}

	raw, err := json.Marshal(row.Metadata)
	if err != nil {
		return "Topic: " + category
	}
	return string(raw)
}

type verdictWire struct {
	Verdict string `json:"verdict"`
}

func (w *Worker) judgeHallucination(ctx context.Context, mode, reference, response string) string {
	systemPrompt, userPrompt := prompts.HallucinationCheck(mode, reference, response)

	verdict, err := w.judge(ctx, systemPrompt, userPrompt)
	if err != nil {
		logger.Warn("Hallucination judgment failed, defaulting to factual", zap.Error(err))
		return models.HallucinationFactual
	}
	if verdict == models.HallucinationHallucinated {
		return models.HallucinationHallucinated
	}
	return models.HallucinationFactual
}

func (w *Worker) judgeRelevance(ctx context.Context, mode, content string) string {
	systemPrompt, userPrompt := prompts.RelevanceCheck(mode, content)

	verdict, err := w.judge(ctx, systemPrompt, userPrompt)
	if err != nil {
		logger.Warn("Relevance judgment failed, defaulting to relevant", zap.Error(err))
		return models.RelevanceRelevant
	}
	if verdict == models.RelevanceUnrelated {
		return models.RelevanceUnrelated
	}
	return models.RelevanceRelevant
}

func (w *Worker) judge(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := w.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  w.cfg.Temperature,
		MaxTokens:    50,
	})
	if err != nil {
		return "", err
	}

	var wire verdictWire
	if err := llm.ExtractJSON(resp.Content, &wire); err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(wire.Verdict)), nil
}

type tickTally struct {
	mu            sync.Mutex
	byCategory    map[string]int
	relevance     map[string]int
	hallucination map[string]int
	failures      int
}

func newTickTally() *tickTally {
	return &tickTally{
		byCategory:    make(map[string]int),
		relevance:     make(map[string]int),
		hallucination: make(map[string]int),
	}
}

func (t *tickTally) record(category, relevance, hallucination string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byCategory[category]++
	t.relevance[relevance]++
	t.hallucination[hallucination]++
}

func (t *tickTally) failure() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures++
}

func (t *tickTally) log(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	logger.Info("Evaluation tick completed",
		zap.Int("page_size", page),
		zap.Int("failures", t.failures),
		zap.Any("by_category", t.byCategory),
		zap.Any("relevance", t.relevance),
		zap.Any("hallucination", t.hallucination),
	)
}
