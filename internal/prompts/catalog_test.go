package prompts

import (
	"strings"
	"testing"
)

func TestTopicTaxonomy(t *testing.T) {
	if len(Topics) != 4 {
		t.Fatalf("expected 4 topics, got %d", len(Topics))
	}

	wantNames := []string{"Pain Points", "Blockers", "Customer Requests", "Solution Feedback"}
	for i, want := range wantNames {
		if Topics[i].Name != want {
			t.Errorf("topic %d: expected %q, got %q", i, want, Topics[i].Name)
		}
	}
}

func TestTopicLookups(t *testing.T) {
	if topic, ok := TopicByKey("blockers"); !ok || topic.Name != "Blockers" {
		t.Errorf("TopicByKey failed: %+v %v", topic, ok)
	}
	if _, ok := TopicByKey("nonsense"); ok {
		t.Error("expected miss for unknown key")
	}

	if topic, ok := TopicByName("Customer Requests"); !ok || topic.Key != "customer_requests" {
		t.Errorf("TopicByName failed: %+v %v", topic, ok)
	}
	if _, ok := TopicByName("customer_requests"); ok {
		t.Error("TopicByName must not match keys")
	}
}

func TestTopicForInsightType(t *testing.T) {
	cases := map[string]string{
		"pain_points_quote":                 "pain_points",
		"pain_points_recommendation":        "pain_points",
		"blockers_summary":                  "blockers",
		"customer_requests_grouped_insight": "customer_requests",
		"solution_feedback_quote":           "solution_feedback",
	}
	for insightType, wantKey := range cases {
		topic, ok := TopicForInsightType(insightType)
		if !ok {
			t.Errorf("expected match for %q", insightType)
			continue
		}
		if topic.Key != wantKey {
			t.Errorf("%q: expected %q, got %q", insightType, wantKey, topic.Key)
		}
	}

	if _, ok := TopicForInsightType("unknown_quote"); ok {
		t.Error("expected miss for unknown insight type")
	}
}

func TestTopicAnalysisIncludesContractAndContent(t *testing.T) {
	for _, topic := range Topics {
		system, user, err := TopicAnalysis(topic, "the feedback body")
		if err != nil {
			t.Fatalf("topic %q: %v", topic.Key, err)
		}
		if system == "" {
			t.Errorf("topic %q: empty system prompt", topic.Key)
		}
		if !strings.Contains(user, "relevance_score") {
			t.Errorf("topic %q: user prompt missing JSON contract", topic.Key)
		}
		if !strings.Contains(user, "the feedback body") {
			t.Errorf("topic %q: user prompt missing chunk content", topic.Key)
		}
		if !strings.Contains(user, "Category: "+topic.Name) {
			t.Errorf("topic %q: user prompt missing category criteria", topic.Key)
		}
	}
}

func TestTopicAnalysisUnknownTopic(t *testing.T) {
	if _, _, err := TopicAnalysis(Topic{Key: "bogus", Name: "Bogus"}, "x"); err == nil {
		t.Error("expected error for unknown topic")
	}
}

func TestQuoteGroupingIndexesQuotes(t *testing.T) {
	_, user := QuoteGrouping(Topics[0], []string{"first quote", "second quote"})

	if !strings.Contains(user, "[0] first quote") || !strings.Contains(user, "[1] second quote") {
		t.Error("expected zero-based indexed quotes in the prompt")
	}
	if !strings.Contains(user, "quote_indices") {
		t.Error("expected the grouping JSON contract")
	}
}

func TestHallucinationCheckContainsBothTexts(t *testing.T) {
	_, user := HallucinationCheck("Pain Points", "the source", "the claim")

	if !strings.Contains(user, "the source") || !strings.Contains(user, "the claim") {
		t.Error("expected both the reference and the claim in the prompt")
	}
	if !strings.Contains(user, `"verdict"`) {
		t.Error("expected the verdict contract")
	}
}

func TestRelevanceCheckRepeatsAllCategories(t *testing.T) {
	_, user := RelevanceCheck("Blockers", "some text")

	for _, topic := range Topics {
		if !strings.Contains(user, "Category: "+topic.Name) {
			t.Errorf("expected criteria for %q in the relevance prompt", topic.Name)
		}
	}
	if !strings.Contains(user, `"Blockers"`) {
		t.Error("expected the target category named in the question")
	}
}
