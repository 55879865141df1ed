package evaluation

import (
	"sort"
	"time"

	"github.com/feedbacklens/backend/internal/storage/models"
)

// StatusStore is the read surface for the evaluation status report.
type StatusStore interface {
	ListInsights() ([]models.Insight, error)
}

type EvaluatedInsight struct {
	ID            string    `json:"id"`
	InsightType   string    `json:"insight_type"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	Relevance     string    `json:"relevance"`
	Hallucination string    `json:"hallucination"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

type StatusReport struct {
	TotalInsights       int                `json:"total_insights"`
	EvaluatedInsights   int                `json:"evaluated_insights"`
	UnevaluatedInsights int                `json:"unevaluated_insights"`
	RelevanceTally      map[string]int     `json:"relevance_tally"`
	HallucinationTally  map[string]int     `json:"hallucination_tally"`
	ByCategory          map[string]int     `json:"by_category"`
	Recent              []EvaluatedInsight `json:"recent"`
	All                 []EvaluatedInsight `json:"all"`
}

const recentLimit = 10

// BuildStatus aggregates evaluation progress over all stored insights.
// The worker has no direct UI; this report is how its behavior is
// observed.
func BuildStatus(store StatusStore) (*StatusReport, error) {
	rows, err := store.ListInsights()
	if err != nil {
		return nil, err
	}

	report := &StatusReport{
		TotalInsights:      len(rows),
		RelevanceTally:     make(map[string]int),
		HallucinationTally: make(map[string]int),
		ByCategory:         make(map[string]int),
		Recent:             []EvaluatedInsight{},
		All:                []EvaluatedInsight{},
	}

	for _, row := range rows {
		if row.Metadata.Eval == nil {
			continue
		}
		report.EvaluatedInsights++
		report.RelevanceTally[row.Metadata.Eval.Relevance]++
		report.HallucinationTally[row.Metadata.Eval.Hallucination]++
		report.ByCategory[row.Metadata.Eval.Mode]++

		report.All = append(report.All, EvaluatedInsight{
			ID:            row.ID,
			InsightType:   row.InsightType,
			Content:       row.Content,
			Category:      row.Metadata.Eval.Mode,
			Relevance:     row.Metadata.Eval.Relevance,
			Hallucination: row.Metadata.Eval.Hallucination,
			EvaluatedAt:   row.Metadata.Eval.EvaluatedAt,
		})
	}

	report.UnevaluatedInsights = report.TotalInsights - report.EvaluatedInsights

	sort.SliceStable(report.All, func(i, j int) bool {
		return report.All[i].EvaluatedAt.After(report.All[j].EvaluatedAt)
	})

	limit := recentLimit
	if len(report.All) < limit {
		limit = len(report.All)
	}
	report.Recent = report.All[:limit]

	return report, nil
}
