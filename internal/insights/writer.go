package insights

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/pkg/logger"
	"github.com/feedbacklens/backend/pkg/retry"
)

// Store is the write surface the insight writer needs.
type Store interface {
	InsertInsightRows(insights []models.Insight) error
}

// Writer decomposes aggregated topic insights into typed rows. Writes
// are append-only: older generations stay in place, every run is
// stamped with a fresh run id so readers can select the latest.
type Writer struct {
	store    Store
	retryCfg retry.Config
}

func NewWriter(store Store) *Writer {
	cfg := retry.DefaultConfig()
	cfg.Logger = logger.GetLogger()

	return &Writer{
		store:    store,
		retryCfg: cfg,
	}
}

// Persist writes one row per recommendation, one per qualifying
// snippet and exactly one summary row for each topic insight. Returns
// the run id stamped into every row.
func (w *Writer) Persist(ctx context.Context, result *analysis.Result) (string, error) {
	runID := uuid.New().String()
	now := time.Now()

	var rows []models.Insight

	for _, insight := range result.Insights {
		topic, ok := prompts.TopicByName(insight.Topic)
		if !ok {
			logger.Warn("Skipping insight with unknown topic", zap.String("topic", insight.Topic))
			continue
		}

		for _, rec := range insight.Recommendations {
			rows = append(rows, models.Insight{
				ID:          uuid.New().String(),
				InsightType: topic.Key + "_recommendation",
				Content:     rec,
				Metadata: models.Metadata{
					Topic: topic.Name,
					RunID: runID,
				},
				CreatedAt: now,
			})
			metrics.InsightsWritten.WithLabelValues("recommendation").Inc()
		}

		for _, snippet := range insight.Snippets {
			rows = append(rows, models.Insight{
				ID:          uuid.New().String(),
				InsightType: topic.Key + "_quote",
				Content:     snippet.Text,
				Metadata: models.Metadata{
					Topic:     topic.Name,
					RunID:     runID,
					ChunkID:   snippet.ChunkID,
					Relevance: snippet.Relevance,
					Source:    snippet.Source,
				},
				CreatedAt: now,
			})
			metrics.InsightsWritten.WithLabelValues("quote").Inc()
		}

		rows = append(rows, models.Insight{
			ID:          uuid.New().String(),
			InsightType: topic.Key + "_summary",
			Content:     insight.Summary,
			Metadata: models.Metadata{
				Topic:   topic.Name,
				RunID:   runID,
				Summary: insight.Summary,
			},
			CreatedAt: now,
		})
		metrics.InsightsWritten.WithLabelValues("summary").Inc()
	}

	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.store.InsertInsightRows(rows)
	})
	if err != nil {
		return "", err
	}

	logger.Info("Insight rows persisted",
		zap.String("run_id", runID),
		zap.Int("rows", len(rows)),
		zap.Int("topics", len(result.Insights)),
	)

	return runID, nil
}
