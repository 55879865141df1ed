package analysis

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/pkg/logger"
)

// Orchestrator drives the analyzer across the chunk x topic cross
// product in bounded batches. Batches are strictly sequential; within a
// batch every (chunk, topic) pair runs concurrently and all pairs
// settle before the next batch starts.
type Orchestrator struct {
	analyzer           *Analyzer
	batchSize          int
	batchPause         time.Duration
	relevanceThreshold int
	maxRecommendations int
	maxStreamChunks    int
}

type OrchestratorConfig struct {
	BatchSize          int
	BatchPause         time.Duration
	RelevanceThreshold int
	MaxRecommendations int
	MaxStreamChunks    int
}

// Progress is one streaming status update, emitted after each batch.
type Progress struct {
	Percent int
	Message string
}

type ProgressFunc func(Progress)

func NewOrchestrator(analyzer *Analyzer, cfg OrchestratorConfig) *Orchestrator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 3
	}
	if cfg.RelevanceThreshold <= 0 {
		cfg.RelevanceThreshold = 4
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = 3
	}
	if cfg.MaxStreamChunks <= 0 {
		cfg.MaxStreamChunks = 20
	}

	return &Orchestrator{
		analyzer:           analyzer,
		batchSize:          cfg.BatchSize,
		batchPause:         cfg.BatchPause,
		relevanceThreshold: cfg.RelevanceThreshold,
		maxRecommendations: cfg.MaxRecommendations,
		maxStreamChunks:    cfg.MaxStreamChunks,
	}
}

// Run executes a full analysis over the given chunks.
func (o *Orchestrator) Run(ctx context.Context, chunks []models.Chunk) (*Result, error) {
	return o.run(ctx, chunks, nil)
}

// RunStreaming is Run with progress callbacks and a chunk ceiling that
// bounds worst-case duration within a single request lifecycle.
func (o *Orchestrator) RunStreaming(ctx context.Context, chunks []models.Chunk, fn ProgressFunc) (*Result, error) {
	if len(chunks) > o.maxStreamChunks {
		if fn != nil {
			fn(Progress{Percent: 0, Message: fmt.Sprintf("Limiting analysis to the first %d of %d chunks", o.maxStreamChunks, len(chunks))})
		}
		chunks = chunks[:o.maxStreamChunks]
	}
	return o.run(ctx, chunks, fn)
}

type topicAccumulator struct {
	totalScore int
	snippets   []Snippet
	recs       []string
	recSeen    map[string]struct{}
	mentions   int
}

func (o *Orchestrator) run(ctx context.Context, chunks []models.Chunk, fn ProgressFunc) (*Result, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no feedback chunks to analyze")
	}

	start := time.Now()

	accumulators := make(map[string]*topicAccumulator, len(prompts.Topics))
	for _, topic := range prompts.Topics {
		accumulators[topic.Key] = &topicAccumulator{recSeen: make(map[string]struct{})}
	}

	var mu sync.Mutex

	totalBatches := (len(chunks) + o.batchSize - 1) / o.batchSize

	for batchIdx := 0; batchIdx < totalBatches; batchIdx++ {
		lo := batchIdx * o.batchSize
		hi := lo + o.batchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]

		var wg sync.WaitGroup
		for _, chunk := range batch {
			for _, topic := range prompts.Topics {
				wg.Add(1)
				go func(chunk models.Chunk, topic prompts.Topic) {
					defer wg.Done()

					// Analyze swallows its own failures; a bad pair
					// contributes the zero result and nothing else.
					result := o.analyzer.Analyze(ctx, chunk.Content, chunk.ID, topic)
					if result.RelevanceScore == 0 && len(result.Snippets) == 0 {
						return
					}

					mu.Lock()
					defer mu.Unlock()
					acc := accumulators[topic.Key]
					acc.totalScore += result.RelevanceScore
					// A result scored below the threshold contributes no
					// snippets, even when individual snippets carry a
					// high relevance of their own.
					if result.RelevanceScore >= o.relevanceThreshold {
						acc.snippets = append(acc.snippets, result.Snippets...)
					}
					acc.mentions++
					for _, rec := range result.Recommendations {
						if _, seen := acc.recSeen[rec]; seen {
							continue
						}
						acc.recSeen[rec] = struct{}{}
						acc.recs = append(acc.recs, rec)
					}
				}(chunk, topic)
			}
		}
		wg.Wait()

		if fn != nil {
			percent := (batchIdx + 1) * 100 / totalBatches
			fn(Progress{
				Percent: percent,
				Message: fmt.Sprintf("Analyzed %d of %d feedback chunks", hi, len(chunks)),
			})
		}

		if batchIdx < totalBatches-1 && o.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.batchPause):
			}
		}
	}

	result := o.aggregate(accumulators)

	logger.Info("Analysis run completed",
		zap.Int("chunks", len(chunks)),
		zap.Int("topics", len(result.Insights)),
		zap.Duration("duration", time.Since(start)),
	)

	return result, nil
}

func (o *Orchestrator) aggregate(accumulators map[string]*topicAccumulator) *Result {
	result := &Result{
		ChartData: []ChartPoint{},
		Insights:  []TopicInsight{},
	}

	for _, topic := range prompts.Topics {
		acc := accumulators[topic.Key]

		qualifying := make([]Snippet, 0, len(acc.snippets))
		for _, s := range acc.snippets {
			if s.Relevance >= o.relevanceThreshold {
				qualifying = append(qualifying, s)
			}
		}
		if len(qualifying) == 0 {
			continue
		}

		sort.SliceStable(qualifying, func(i, j int) bool {
			return qualifying[i].Relevance > qualifying[j].Relevance
		})

		recs := acc.recs
		if len(recs) > o.maxRecommendations {
			recs = recs[:o.maxRecommendations]
		}

		// The chart value and the mentions label are the same number:
		// the count of qualifying snippets, not the raw score sum.
		mentions := len(qualifying)

		result.Insights = append(result.Insights, TopicInsight{
			Topic:           topic.Name,
			Summary:         summarizeVolume(topic, mentions),
			Snippets:        qualifying,
			Recommendations: recs,
			TotalMentions:   mentions,
		})
	}

	sort.SliceStable(result.Insights, func(i, j int) bool {
		return len(result.Insights[i].Snippets) > len(result.Insights[j].Snippets)
	})

	for _, insight := range result.Insights {
		result.ChartData = append(result.ChartData, ChartPoint{
			Name:  insight.Topic,
			Value: insight.TotalMentions,
		})
	}

	return result
}

func summarizeVolume(topic prompts.Topic, mentions int) string {
	noun := "mentions"
	if mentions == 1 {
		noun = "mention"
	}
	return fmt.Sprintf("Identified %d high-relevance %s of %s across the analyzed feedback.", mentions, noun, topic.Name)
}
