package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/pkg/logger"
)

const (
	maxSnippetsPerCall = 2
	maxRecsPerCall     = 3
	defaultRelevance   = 3
)

// Analyzer scores a single chunk against a single topic. Failures of
// any kind (timeout, provider error, unparseable JSON) collapse to the
// zero-value result so one bad pair never aborts a batch.
type Analyzer struct {
	llm         llm.Completer
	temperature float32
}

func NewAnalyzer(client llm.Completer, temperature float32) *Analyzer {
	return &Analyzer{
		llm:         client,
		temperature: temperature,
	}
}

type topicWire struct {
	RelevanceScore *int `json:"relevance_score"`
	Snippets       []struct {
		Text      string `json:"text"`
		Relevance *int   `json:"relevance"`
	} `json:"snippets"`
	Recommendations []string `json:"recommendations"`
}

func (a *Analyzer) Analyze(ctx context.Context, chunkContent, chunkID string, topic prompts.Topic) TopicResult {
	systemPrompt, userPrompt, err := prompts.TopicAnalysis(topic, chunkContent)
	if err != nil {
		logger.Error("Unknown topic", zap.String("topic", topic.Key), zap.Error(err))
		return TopicResult{}
	}

	resp, err := a.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  a.temperature,
	})
	if err != nil {
		logger.Warn("Topic analysis call failed",
			zap.String("topic", topic.Key),
			zap.String("chunk_id", chunkID),
			zap.Error(err),
		)
		return TopicResult{}
	}

	var wire topicWire
	if err := llm.ExtractJSON(resp.Content, &wire); err != nil {
		logger.Warn("Topic analysis response unparseable",
			zap.String("topic", topic.Key),
			zap.String("chunk_id", chunkID),
			zap.Error(err),
		)
		return TopicResult{}
	}

	return a.normalize(wire, chunkContent, chunkID)
}

func (a *Analyzer) normalize(wire topicWire, chunkContent, chunkID string) TopicResult {
	result := TopicResult{}

	if wire.RelevanceScore != nil {
		result.RelevanceScore = clampScore(*wire.RelevanceScore)
	}

	source, _ := ExtractSourceName(chunkContent)

	for _, s := range wire.Snippets {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		relevance := defaultRelevance
		if s.Relevance != nil {
			relevance = clampScore(*s.Relevance)
		}
		result.Snippets = append(result.Snippets, Snippet{
			Text:      text,
			Relevance: relevance,
			ChunkID:   chunkID,
			Source:    source,
		})
		if len(result.Snippets) == maxSnippetsPerCall {
			break
		}
	}

	for _, r := range wire.Recommendations {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		result.Recommendations = append(result.Recommendations, r)
		if len(result.Recommendations) == maxRecsPerCall {
			break
		}
	}

	return result
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 5 {
		return 5
	}
	return score
}
