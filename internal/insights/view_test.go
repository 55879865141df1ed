package insights

import (
	"strings"
	"testing"

	"github.com/feedbacklens/backend/internal/storage/models"
)

type viewMemStore struct {
	runID string
	rows  []models.Insight
}

func (v *viewMemStore) LatestRunID() (string, error) {
	return v.runID, nil
}

func (v *viewMemStore) ListInsightsByRun(runID string) ([]models.Insight, error) {
	var out []models.Insight
	for _, row := range v.rows {
		if row.Metadata.RunID == runID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (v *viewMemStore) ListInsightsByTypeLike(pattern string) ([]models.Insight, error) {
	needle := strings.Trim(pattern, "%")
	var out []models.Insight
	for _, row := range v.rows {
		if strings.Contains(row.InsightType, needle) {
			out = append(out, row)
		}
	}
	return out, nil
}

func idx(i int) *int { return &i }

func TestBuildViewEmpty(t *testing.T) {
	view, err := BuildView(&viewMemStore{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Insights) != 0 || len(view.ChartData) != 0 {
		t.Errorf("expected empty view, got %+v", view)
	}
}

func TestBuildViewReassemblesTopics(t *testing.T) {
	store := &viewMemStore{runID: "run-1", rows: []models.Insight{
		{ID: "1", InsightType: "pain_points_quote", Content: "slow", Metadata: models.Metadata{RunID: "run-1", Relevance: 4, ChunkID: "c1"}},
		{ID: "2", InsightType: "pain_points_quote", Content: "very slow", Metadata: models.Metadata{RunID: "run-1", Relevance: 5, ChunkID: "c2"}},
		{ID: "3", InsightType: "pain_points_recommendation", Content: "speed up", Metadata: models.Metadata{RunID: "run-1"}},
		{ID: "4", InsightType: "pain_points_summary", Content: "the summary", Metadata: models.Metadata{RunID: "run-1"}},
		{ID: "5", InsightType: "blockers_quote", Content: "stuck", Metadata: models.Metadata{RunID: "run-1", Relevance: 5}},
		{ID: "6", InsightType: "blockers_summary", Content: "blockers summary", Metadata: models.Metadata{RunID: "run-1"}},
	}}

	view, err := BuildView(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(view.Insights) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(view.Insights))
	}

	// Pain Points has more snippets and sorts first.
	pp := view.Insights[0]
	if pp.Topic != "Pain Points" {
		t.Fatalf("expected Pain Points first, got %q", pp.Topic)
	}
	if pp.Summary != "the summary" {
		t.Errorf("expected summary row content, got %q", pp.Summary)
	}
	if pp.TotalMentions != 2 || len(pp.Snippets) != 2 {
		t.Errorf("expected 2 mentions, got %d mentions / %d snippets", pp.TotalMentions, len(pp.Snippets))
	}
	if pp.Snippets[0].Relevance < pp.Snippets[1].Relevance {
		t.Error("snippets not sorted by relevance desc")
	}
	if len(pp.Recommendations) != 1 || pp.Recommendations[0] != "speed up" {
		t.Errorf("unexpected recommendations: %v", pp.Recommendations)
	}

	if len(view.ChartData) != 2 || view.ChartData[0].Value != 2 {
		t.Errorf("unexpected chart data: %+v", view.ChartData)
	}
}

func TestBuildViewExcludesStaleRuns(t *testing.T) {
	store := &viewMemStore{runID: "run-2", rows: []models.Insight{
		{ID: "1", InsightType: "pain_points_quote", Content: "old", Metadata: models.Metadata{RunID: "run-1", Relevance: 5}},
		{ID: "2", InsightType: "pain_points_quote", Content: "new", Metadata: models.Metadata{RunID: "run-2", Relevance: 5}},
	}}

	view, err := BuildView(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Insights) != 1 || len(view.Insights[0].Snippets) != 1 {
		t.Fatalf("expected a single snippet from the latest run, got %+v", view.Insights)
	}
	if view.Insights[0].Snippets[0].Text != "new" {
		t.Errorf("stale row leaked into the view: %q", view.Insights[0].Snippets[0].Text)
	}
}

func TestBuildViewOrdersGroupedInsights(t *testing.T) {
	store := &viewMemStore{runID: "run-1", rows: []models.Insight{
		{ID: "1", InsightType: "pain_points_quote", Content: "slow", Metadata: models.Metadata{RunID: "run-1", Relevance: 5}},
		{ID: "2", InsightType: "pain_points_grouped_insight", Content: "second theme", Metadata: models.Metadata{RunID: "run-1", InsightIndex: idx(1)}},
		{ID: "3", InsightType: "pain_points_grouped_insight", Content: "first theme", Metadata: models.Metadata{RunID: "run-1", InsightIndex: idx(0), Quotes: []models.GroupQuote{{Text: "slow"}}}},
	}}

	view, err := BuildView(store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups := view.Insights[0].GroupedInsights
	if len(groups) != 2 {
		t.Fatalf("expected 2 grouped insights, got %d", len(groups))
	}
	if groups[0].InsightStatement != "first theme" {
		t.Errorf("grouped insights not ordered by insight index: %+v", groups)
	}
	if len(groups[0].Quotes) != 1 {
		t.Errorf("expected supporting quotes carried through, got %+v", groups[0].Quotes)
	}
}
