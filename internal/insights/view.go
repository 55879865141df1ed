package insights

import (
	"sort"
	"strings"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/storage/models"
)

// ViewStore is the read surface for rebuilding topic views from stored
// rows.
type ViewStore interface {
	LatestRunID() (string, error)
	ListInsightsByRun(runID string) ([]models.Insight, error)
	ListInsightsByTypeLike(pattern string) ([]models.Insight, error)
}

// TopicView is the API shape of one topic rebuilt from storage:
// quotes, recommendations and summary from the latest analysis run,
// plus the current generation of grouped insights.
type TopicView struct {
	Topic           string             `json:"topic"`
	Summary         string             `json:"summary"`
	Snippets        []analysis.Snippet `json:"snippets"`
	GroupedInsights []GroupedView      `json:"grouped_insights,omitempty"`
	Recommendations []string           `json:"recommendations"`
	TotalMentions   int                `json:"total_mentions"`
}

type GroupedView struct {
	InsightStatement string              `json:"insight_statement"`
	Quotes           []models.GroupQuote `json:"quotes"`
	Recommendations  []string            `json:"recommendations"`
}

type View struct {
	ChartData []analysis.ChartPoint `json:"chartData"`
	Insights  []TopicView           `json:"insights"`
}

// BuildView rebuilds the topic views from the latest run's rows.
// Storage order is not trusted: grouped insights are re-ordered by
// their stored insight_index, snippets by relevance.
func BuildView(store ViewStore) (*View, error) {
	runID, err := store.LatestRunID()
	if err != nil {
		return nil, err
	}

	view := &View{
		ChartData: []analysis.ChartPoint{},
		Insights:  []TopicView{},
	}
	if runID == "" {
		return view, nil
	}

	rows, err := store.ListInsightsByRun(runID)
	if err != nil {
		return nil, err
	}

	grouped, err := store.ListInsightsByTypeLike("%grouped_insight%")
	if err != nil {
		return nil, err
	}

	byTopic := make(map[string]*TopicView)
	topicView := func(topic prompts.Topic) *TopicView {
		if tv, ok := byTopic[topic.Key]; ok {
			return tv
		}
		tv := &TopicView{Topic: topic.Name, Recommendations: []string{}}
		byTopic[topic.Key] = tv
		return tv
	}

	for _, row := range rows {
		topic, ok := prompts.TopicForInsightType(row.InsightType)
		if !ok {
			continue
		}
		tv := topicView(topic)

		switch {
		case strings.HasSuffix(row.InsightType, "_quote"):
			tv.Snippets = append(tv.Snippets, analysis.Snippet{
				Text:      row.Content,
				Relevance: row.Metadata.Relevance,
				ChunkID:   row.Metadata.ChunkID,
				Source:    row.Metadata.Source,
			})
		case strings.HasSuffix(row.InsightType, "_recommendation"):
			tv.Recommendations = append(tv.Recommendations, row.Content)
		case strings.HasSuffix(row.InsightType, "_summary"):
			tv.Summary = row.Content
		}
	}

	groupedByTopic := make(map[string][]models.Insight)
	for _, row := range grouped {
		topic, ok := prompts.TopicForInsightType(row.InsightType)
		if !ok {
			continue
		}
		groupedByTopic[topic.Key] = append(groupedByTopic[topic.Key], row)
	}

	for key, groupRows := range groupedByTopic {
		tv, ok := byTopic[key]
		if !ok {
			continue
		}
		sort.SliceStable(groupRows, func(i, j int) bool {
			return groupIndex(groupRows[i]) < groupIndex(groupRows[j])
		})
		for _, row := range groupRows {
			tv.GroupedInsights = append(tv.GroupedInsights, GroupedView{
				InsightStatement: row.Content,
				Quotes:           row.Metadata.Quotes,
				Recommendations:  row.Metadata.Recommendations,
			})
		}
	}

	for _, topic := range prompts.Topics {
		tv, ok := byTopic[topic.Key]
		if !ok {
			continue
		}
		sort.SliceStable(tv.Snippets, func(i, j int) bool {
			return tv.Snippets[i].Relevance > tv.Snippets[j].Relevance
		})
		tv.TotalMentions = len(tv.Snippets)
		view.Insights = append(view.Insights, *tv)
	}

	sort.SliceStable(view.Insights, func(i, j int) bool {
		return len(view.Insights[i].Snippets) > len(view.Insights[j].Snippets)
	})

	for _, tv := range view.Insights {
		view.ChartData = append(view.ChartData, analysis.ChartPoint{
			Name:  tv.Topic,
			Value: tv.TotalMentions,
		})
	}

	return view, nil
}

func groupIndex(row models.Insight) int {
	if row.Metadata.InsightIndex != nil {
		return *row.Metadata.InsightIndex
	}
	return 1 << 30
}
