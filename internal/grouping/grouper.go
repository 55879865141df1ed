package grouping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/pkg/logger"
)

// Store is the storage surface the grouper needs: it re-reads quote
// rows and replaces the grouped-insight generation wholesale.
type Store interface {
	LatestRunID() (string, error)
	ListInsightsByTypeLike(pattern string) ([]models.Insight, error)
	DeleteInsightsByTypeLike(pattern string) error
	InsertInsightRows(insights []models.Insight) error
}

// Group is one synthesized cluster of a topic's quotes.
type Group struct {
	InsightStatement string
	Quotes           []models.GroupQuote
	Recommendations  []string
}

// Grouper runs the second LLM pass that clusters a topic's quotes into
// named insight groups. Grouping is best-effort enrichment: every
// failure collapses to "no groups", never to an error that would block
// the underlying quotes.
type Grouper struct {
	llm         llm.Completer
	store       Store
	temperature float32
}

func NewGrouper(client llm.Completer, store Store, temperature float32) *Grouper {
	return &Grouper{
		llm:         client,
		store:       store,
		temperature: temperature,
	}
}

type groupWire struct {
	InsightStatement string   `json:"insight_statement"`
	QuoteIndices     []int    `json:"quote_indices"`
	Recommendations  []string `json:"recommendations"`
}

// Group asks the model to partition the quotes into insight groups.
// The contract does not enforce a partition: a quote may appear in
// zero or several groups. Out-of-range indices are discarded.
func (g *Grouper) Group(ctx context.Context, topic prompts.Topic, quotes []models.GroupQuote) []Group {
	if len(quotes) == 0 {
		return nil
	}

	lines := make([]string, len(quotes))
	for i, q := range quotes {
		line := q.Text
		if q.Source != "" {
			line = fmt.Sprintf("%s (— %s)", q.Text, q.Source)
		}
		lines[i] = line
	}

	systemPrompt, userPrompt := prompts.QuoteGrouping(topic, lines)

	resp, err := g.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  g.temperature,
	})
	if err != nil {
		logger.Warn("Quote grouping call failed", zap.String("topic", topic.Key), zap.Error(err))
		return nil
	}

	var wires []groupWire
	if err := llm.ExtractJSON(resp.Content, &wires); err != nil {
		logger.Warn("Quote grouping response unparseable", zap.String("topic", topic.Key), zap.Error(err))
		return nil
	}

	var groups []Group
	for _, wire := range wires {
		if wire.InsightStatement == "" {
			continue
		}
		group := Group{
			InsightStatement: wire.InsightStatement,
			Recommendations:  wire.Recommendations,
		}
		for _, idx := range wire.QuoteIndices {
			if idx < 0 || idx >= len(quotes) {
				logger.Debug("Discarding out-of-range quote index",
					zap.String("topic", topic.Key),
					zap.Int("index", idx),
				)
				continue
			}
			group.Quotes = append(group.Quotes, quotes[idx])
		}
		groups = append(groups, group)
	}

	return groups
}

// Regenerate re-reads the latest run's quotes for every topic, deletes
// the previous grouped-insight generation and writes the new one.
// Delete-then-insert makes repeated runs idempotent.
func (g *Grouper) Regenerate(ctx context.Context) error {
	runID, err := g.store.LatestRunID()
	if err != nil {
		return fmt.Errorf("failed to resolve latest run: %w", err)
	}
	if runID == "" {
		return fmt.Errorf("no analysis results to group")
	}

	quotesByTopic := make(map[string][]models.GroupQuote)
	for _, topic := range prompts.Topics {
		rows, err := g.store.ListInsightsByTypeLike(topic.Key + "_quote")
		if err != nil {
			return fmt.Errorf("failed to read quotes for %s: %w", topic.Key, err)
		}
		for _, row := range rows {
			if row.Metadata.RunID != runID {
				continue
			}
			quotesByTopic[topic.Key] = append(quotesByTopic[topic.Key], models.GroupQuote{
				Text:      row.Content,
				ChunkID:   row.Metadata.ChunkID,
				Source:    row.Metadata.Source,
				Relevance: row.Metadata.Relevance,
			})
		}
	}

	if err := g.store.DeleteInsightsByTypeLike("%grouped_insight%"); err != nil {
		return fmt.Errorf("failed to clear grouped insights: %w", err)
	}

	now := time.Now()
	var rows []models.Insight

	for _, topic := range prompts.Topics {
		quotes := quotesByTopic[topic.Key]
		if len(quotes) == 0 {
			continue
		}

		groups := g.Group(ctx, topic, quotes)
		for i, group := range groups {
			idx := i
			rows = append(rows, models.Insight{
				ID:          uuid.New().String(),
				InsightType: topic.Key + "_grouped_insight",
				Content:     group.InsightStatement,
				Metadata: models.Metadata{
					Topic:           topic.Name,
					RunID:           runID,
					InsightIndex:    &idx,
					Quotes:          group.Quotes,
					Recommendations: group.Recommendations,
				},
				CreatedAt: now,
			})
			metrics.InsightsWritten.WithLabelValues("grouped_insight").Inc()
		}

		logger.Info("Topic quotes grouped",
			zap.String("topic", topic.Key),
			zap.Int("quotes", len(quotes)),
			zap.Int("groups", len(groups)),
		)
	}

	if err := g.store.InsertInsightRows(rows); err != nil {
		return fmt.Errorf("failed to write grouped insights: %w", err)
	}

	return nil
}
