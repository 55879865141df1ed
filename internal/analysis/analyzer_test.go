package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/prompts"
)

// stubCompleter returns a canned response chosen per request, or a
// fixed error. Safe for concurrent use.
type stubCompleter struct {
	mu       sync.Mutex
	respond  func(req llm.CompletionRequest) (string, error)
	requests []llm.CompletionRequest
}

func (s *stubCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	content, err := s.respond(req)
	if err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Content: content}, nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func fixedResponse(content string) *stubCompleter {
	return &stubCompleter{respond: func(llm.CompletionRequest) (string, error) {
		return content, nil
	}}
}

func mustTopic(t *testing.T, key string) prompts.Topic {
	t.Helper()
	topic, ok := prompts.TopicByKey(key)
	if !ok {
		t.Fatalf("unknown topic key %q", key)
	}
	return topic
}

func TestAnalyzeParsesFullResponse(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 4, "snippets": [{"text": "the export keeps failing", "relevance": 5}], "recommendations": ["Fix the export pipeline"]}`)
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "The export keeps failing for us.", "chunk-1", mustTopic(t, "pain_points"))

	if result.RelevanceScore != 4 {
		t.Errorf("expected relevance score 4, got %d", result.RelevanceScore)
	}
	if len(result.Snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(result.Snippets))
	}
	if result.Snippets[0].Relevance != 5 {
		t.Errorf("expected snippet relevance 5, got %d", result.Snippets[0].Relevance)
	}
	if result.Snippets[0].ChunkID != "chunk-1" {
		t.Errorf("expected chunk id to be attached, got %q", result.Snippets[0].ChunkID)
	}
	if len(result.Recommendations) != 1 {
		t.Errorf("expected 1 recommendation, got %d", len(result.Recommendations))
	}
}

func TestAnalyzeZeroResultOnProviderError(t *testing.T) {
	stub := &stubCompleter{respond: func(llm.CompletionRequest) (string, error) {
		return "", errors.New("provider down")
	}}
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "blockers"))

	if result.RelevanceScore != 0 || len(result.Snippets) != 0 || len(result.Recommendations) != 0 {
		t.Errorf("expected zero-value result, got %+v", result)
	}
}

func TestAnalyzeZeroResultOnGarbageOutput(t *testing.T) {
	stub := fixedResponse("I'm sorry, I cannot classify this feedback.")
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "customer_requests"))

	if result.RelevanceScore != 0 || len(result.Snippets) != 0 {
		t.Errorf("expected zero-value result, got %+v", result)
	}
}

func TestAnalyzeClampsScores(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 11, "snippets": [{"text": "quote", "relevance": -3}], "recommendations": []}`)
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "pain_points"))

	if result.RelevanceScore != 5 {
		t.Errorf("expected score clamped to 5, got %d", result.RelevanceScore)
	}
	if result.Snippets[0].Relevance != 0 {
		t.Errorf("expected snippet relevance clamped to 0, got %d", result.Snippets[0].Relevance)
	}
}

func TestAnalyzeDefaultsMissingSnippetRelevance(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 4, "snippets": [{"text": "a quote"}], "recommendations": []}`)
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "pain_points"))

	if len(result.Snippets) != 1 {
		t.Fatalf("expected 1 snippet, got %d", len(result.Snippets))
	}
	if result.Snippets[0].Relevance != 3 {
		t.Errorf("expected default relevance 3, got %d", result.Snippets[0].Relevance)
	}
}

func TestAnalyzeCapsSnippetsAndRecommendations(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 5, "snippets": [{"text": "a", "relevance": 5}, {"text": "b", "relevance": 4}, {"text": "c", "relevance": 3}], "recommendations": ["r1", "r2", "r3", "r4", "r5"]}`)
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "pain_points"))

	if len(result.Snippets) != 2 {
		t.Errorf("expected snippets capped at 2, got %d", len(result.Snippets))
	}
	if len(result.Recommendations) != 3 {
		t.Errorf("expected recommendations capped at 3, got %d", len(result.Recommendations))
	}
}

func TestAnalyzeSkipsEmptySnippets(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 4, "snippets": [{"text": "  "}, {"text": "real quote", "relevance": 4}], "recommendations": ["", "do the thing"]}`)
	analyzer := NewAnalyzer(stub, 0.1)

	result := analyzer.Analyze(context.Background(), "anything", "chunk-1", mustTopic(t, "pain_points"))

	if len(result.Snippets) != 1 || result.Snippets[0].Text != "real quote" {
		t.Errorf("expected only the non-empty snippet, got %+v", result.Snippets)
	}
	if len(result.Recommendations) != 1 || result.Recommendations[0] != "do the thing" {
		t.Errorf("expected only the non-empty recommendation, got %+v", result.Recommendations)
	}
}

func TestAnalyzeAttachesSourceName(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 4, "snippets": [{"text": "quote", "relevance": 4}], "recommendations": []}`)
	analyzer := NewAnalyzer(stub, 0.1)

	content := "Name: Dana Whitfield\nThe dashboard takes forever to load."
	result := analyzer.Analyze(context.Background(), content, "chunk-1", mustTopic(t, "pain_points"))

	if result.Snippets[0].Source != "Dana Whitfield" {
		t.Errorf("expected attributed source, got %q", result.Snippets[0].Source)
	}
}

func TestAnalyzeSendsTopicCriteria(t *testing.T) {
	stub := fixedResponse(`{"relevance_score": 0, "snippets": [], "recommendations": []}`)
	analyzer := NewAnalyzer(stub, 0.1)

	analyzer.Analyze(context.Background(), "some feedback", "chunk-1", mustTopic(t, "blockers"))

	if len(stub.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(stub.requests))
	}
	if !strings.Contains(stub.requests[0].UserPrompt, "Category: Blockers") {
		t.Error("expected the blockers criteria in the user prompt")
	}
	if !strings.Contains(stub.requests[0].UserPrompt, "some feedback") {
		t.Error("expected the chunk content in the user prompt")
	}
}
