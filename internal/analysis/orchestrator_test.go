package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/storage/models"
)

func testChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:      fmt.Sprintf("chunk-%d", i),
			Content: fmt.Sprintf("feedback item %d", i),
		}
	}
	return chunks
}

// blockersOnly answers with a hit for the Blockers topic and a miss for
// everything else.
func blockersOnly(score, snippetRelevance int) *stubCompleter {
	return &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "Category: Blockers") {
			return fmt.Sprintf(`{"relevance_score": %d, "snippets": [{"text": "cannot finish setup", "relevance": %d}], "recommendations": ["Simplify onboarding"]}`, score, snippetRelevance), nil
		}
		return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
	}}
}

func newTestOrchestrator(stub *stubCompleter) *Orchestrator {
	return NewOrchestrator(NewAnalyzer(stub, 0), OrchestratorConfig{
		BatchSize:          3,
		BatchPause:         0,
		RelevanceThreshold: 4,
		MaxRecommendations: 3,
		MaxStreamChunks:    20,
	})
}

func TestRunEmptyChunks(t *testing.T) {
	o := newTestOrchestrator(fixedResponse(`{}`))
	_, err := o.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for empty chunk set")
	}
}

func TestRunSingleTopicHit(t *testing.T) {
	stub := blockersOnly(5, 5)
	o := newTestOrchestrator(stub)

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Insights) != 1 {
		t.Fatalf("expected exactly 1 topic insight, got %d", len(result.Insights))
	}
	insight := result.Insights[0]
	if insight.Topic != "Blockers" {
		t.Errorf("expected Blockers, got %q", insight.Topic)
	}
	if insight.TotalMentions != len(insight.Snippets) {
		t.Errorf("TotalMentions %d != len(Snippets) %d", insight.TotalMentions, len(insight.Snippets))
	}
	if insight.TotalMentions != 2 {
		t.Errorf("expected 2 mentions from 2 chunks, got %d", insight.TotalMentions)
	}

	if len(result.ChartData) != 1 {
		t.Fatalf("expected 1 chart point, got %d", len(result.ChartData))
	}
	if result.ChartData[0].Name != "Blockers" || result.ChartData[0].Value != 2 {
		t.Errorf("unexpected chart point %+v", result.ChartData[0])
	}

	// 2 chunks x 4 topics.
	if stub.callCount() != 8 {
		t.Errorf("expected 8 analyzer calls, got %d", stub.callCount())
	}
}

func TestRunFiltersBelowThreshold(t *testing.T) {
	// Snippet relevance 3 is below the threshold of 4; the topic must
	// not appear at all.
	o := newTestOrchestrator(blockersOnly(5, 3))

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Insights) != 0 {
		t.Errorf("expected no insights below threshold, got %d", len(result.Insights))
	}
	if len(result.ChartData) != 0 {
		t.Errorf("expected empty chart data, got %d points", len(result.ChartData))
	}
}

func TestRunDropsSnippetsFromLowScoreResults(t *testing.T) {
	// A result scored 2 for the chunk as a whole contributes nothing,
	// even though its snippet carries relevance 5 on its own.
	o := newTestOrchestrator(blockersOnly(2, 5))

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Insights) != 0 {
		t.Errorf("expected no insights from low-scored results, got %d", len(result.Insights))
	}
}

func TestRunMixedScoresKeepQualifyingResultsOnly(t *testing.T) {
	// One chunk scores below the threshold with a high-relevance
	// snippet, the other qualifies outright; only the qualifying
	// chunk's snippet survives.
	stub := &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		if !strings.Contains(req.UserPrompt, "Category: Blockers") {
			return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
		}
		if strings.Contains(req.UserPrompt, "feedback item 0") {
			return `{"relevance_score": 2, "snippets": [{"text": "cannot finish setup", "relevance": 5}], "recommendations": []}`, nil
		}
		return `{"relevance_score": 5, "snippets": [{"text": "stuck on permissions", "relevance": 5}], "recommendations": []}`, nil
	}}
	o := newTestOrchestrator(stub)

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Insights) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(result.Insights))
	}
	insight := result.Insights[0]
	if insight.TotalMentions != 1 || len(insight.Snippets) != 1 {
		t.Fatalf("expected a single qualifying snippet, got %+v", insight)
	}
	if insight.Snippets[0].Text != "stuck on permissions" {
		t.Errorf("low-scored result's snippet leaked through: %+v", insight.Snippets)
	}
}

func TestRunFaultIsolation(t *testing.T) {
	// One chunk always fails; the others still aggregate.
	stub := &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "feedback item 1") {
			return "", errors.New("provider error")
		}
		if strings.Contains(req.UserPrompt, "Category: Pain Points") {
			return `{"relevance_score": 4, "snippets": [{"text": "so frustrating", "relevance": 4}], "recommendations": []}`, nil
		}
		return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
	}}
	o := newTestOrchestrator(stub)

	result, err := o.Run(context.Background(), testChunks(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Insights) != 1 {
		t.Fatalf("expected 1 insight despite failing chunk, got %d", len(result.Insights))
	}
	if result.Insights[0].TotalMentions != 2 {
		t.Errorf("expected 2 mentions from surviving chunks, got %d", result.Insights[0].TotalMentions)
	}
}

func TestRunDeduplicatesAndCapsRecommendations(t *testing.T) {
	stub := &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "Category: Customer Requests") {
			return `{"relevance_score": 5, "snippets": [{"text": "please add SSO", "relevance": 5}], "recommendations": ["Add SSO", "Add SSO", "Add SAML", "Add OIDC", "Add LDAP"]}`, nil
		}
		return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
	}}
	o := newTestOrchestrator(stub)

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	recs := result.Insights[0].Recommendations
	if len(recs) != 3 {
		t.Fatalf("expected recommendations capped at 3, got %d: %v", len(recs), recs)
	}
	seen := map[string]bool{}
	for _, r := range recs {
		if seen[r] {
			t.Errorf("duplicate recommendation %q survived", r)
		}
		seen[r] = true
	}
}

func TestRunSnippetsSortedByRelevance(t *testing.T) {
	next := 0
	relevances := []int{4, 5}
	stub := &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		if strings.Contains(req.UserPrompt, "Category: Pain Points") {
			r := relevances[next%len(relevances)]
			next++
			return fmt.Sprintf(`{"relevance_score": 5, "snippets": [{"text": "quote %d", "relevance": %d}], "recommendations": []}`, r, r), nil
		}
		return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
	}}
	// Single-pair batches keep the stub's sequential counter meaningful.
	o := NewOrchestrator(NewAnalyzer(stub, 0), OrchestratorConfig{
		BatchSize:          1,
		RelevanceThreshold: 4,
		MaxRecommendations: 3,
		MaxStreamChunks:    20,
	})

	result, err := o.Run(context.Background(), testChunks(2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snippets := result.Insights[0].Snippets
	if len(snippets) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(snippets))
	}
	if snippets[0].Relevance < snippets[1].Relevance {
		t.Errorf("snippets not sorted by relevance desc: %+v", snippets)
	}
}

func TestRunTopicsSortedBySnippetCount(t *testing.T) {
	stub := &stubCompleter{respond: func(req llm.CompletionRequest) (string, error) {
		switch {
		case strings.Contains(req.UserPrompt, "Category: Pain Points"):
			return `{"relevance_score": 5, "snippets": [{"text": "a", "relevance": 5}, {"text": "b", "relevance": 5}], "recommendations": []}`, nil
		case strings.Contains(req.UserPrompt, "Category: Blockers"):
			return `{"relevance_score": 5, "snippets": [{"text": "c", "relevance": 5}], "recommendations": []}`, nil
		}
		return `{"relevance_score": 0, "snippets": [], "recommendations": []}`, nil
	}}
	o := newTestOrchestrator(stub)

	result, err := o.Run(context.Background(), testChunks(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Insights) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(result.Insights))
	}
	if result.Insights[0].Topic != "Pain Points" {
		t.Errorf("expected Pain Points first (more snippets), got %q", result.Insights[0].Topic)
	}
}

func TestRunStreamingEmitsProgress(t *testing.T) {
	o := newTestOrchestrator(blockersOnly(5, 5))

	var updates []Progress
	_, err := o.RunStreaming(context.Background(), testChunks(7), func(p Progress) {
		updates = append(updates, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 7 chunks in batches of 3 -> 3 batches -> 3 progress updates.
	if len(updates) != 3 {
		t.Fatalf("expected 3 progress updates, got %d", len(updates))
	}
	if updates[len(updates)-1].Percent != 100 {
		t.Errorf("expected final progress 100, got %d", updates[len(updates)-1].Percent)
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Percent < updates[i-1].Percent {
			t.Errorf("progress went backwards: %d then %d", updates[i-1].Percent, updates[i].Percent)
		}
	}
}

func TestRunStreamingCapsChunkCount(t *testing.T) {
	stub := blockersOnly(5, 5)
	o := newTestOrchestrator(stub)

	result, err := o.RunStreaming(context.Background(), testChunks(25), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 20 chunks x 4 topics; the 5 chunks over the ceiling are dropped.
	if stub.callCount() != 80 {
		t.Errorf("expected 80 analyzer calls, got %d", stub.callCount())
	}
	if result.Insights[0].TotalMentions != 20 {
		t.Errorf("expected 20 mentions, got %d", result.Insights[0].TotalMentions)
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := NewOrchestrator(NewAnalyzer(blockersOnly(5, 5), 0), OrchestratorConfig{
		BatchSize:          1,
		BatchPause:         time.Hour,
		RelevanceThreshold: 4,
	})

	_, err := o.Run(ctx, testChunks(2))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
