// Package prompts holds the fixed topic taxonomy and every prompt
// template the pipeline sends to the model. The inclusion/exclusion
// criteria in the topic prompts are the product's classification rules;
// change them deliberately.
package prompts

import (
	"fmt"
	"strings"
)

type Topic struct {
	Key  string
	Name string
}

var Topics = []Topic{
	{Key: "pain_points", Name: "Pain Points"},
	{Key: "blockers", Name: "Blockers"},
	{Key: "customer_requests", Name: "Customer Requests"},
	{Key: "solution_feedback", Name: "Solution Feedback"},
}

// TopicByKey returns the topic for a key, or false when unknown.
func TopicByKey(key string) (Topic, bool) {
	for _, t := range Topics {
		if t.Key == key {
			return t, true
		}
	}
	return Topic{}, false
}

// TopicByName returns the topic for a display name, or false when
// unknown.
func TopicByName(name string) (Topic, bool) {
	for _, t := range Topics {
		if t.Name == name {
			return t, true
		}
	}
	return Topic{}, false
}

// TopicForInsightType matches an insight type such as
// "pain_points_quote" back to its topic.
func TopicForInsightType(insightType string) (Topic, bool) {
	for _, t := range Topics {
		if strings.HasPrefix(insightType, t.Key+"_") {
			return t, true
		}
	}
	return Topic{}, false
}

const analysisSystemPrompt = `You are a customer-feedback analyst. You classify raw feedback against one topic category at a time, following the category's inclusion and exclusion criteria exactly. You respond with JSON only: no prose, no markdown fences, no explanations.`

const jsonContract = `Respond with ONLY this JSON shape:
{"relevance_score": <integer 0-5>, "snippets": [{"text": "<verbatim quote from the feedback>", "relevance": <integer 1-5>}], "recommendations": ["<short actionable recommendation>"]}

Rules:
- relevance_score: 0 means the feedback does not belong to this category at all; 4-5 means a high-confidence match.
- snippets: 0 to 2 verbatim quotes supporting the score. Quote the customer's own words.
- recommendations: 0 to 3 short product recommendations derived from this feedback.
- If the feedback does not match the category, respond exactly with:
{"relevance_score": 0, "snippets": [], "recommendations": []}`

var topicCriteria = map[string]string{
	"pain_points": `Category: Pain Points

INCLUDE feedback that expresses frustration, annoyance, confusion, or a degraded experience with the product. Capture emotional and experience language ("frustrating", "confusing", "takes forever", "I hate that").

EXCLUDE:
- Implementation blockers (things the customer cannot complete at all) - those belong to Blockers.
- Feature requests phrased as wishes.
- Neutral bug reports with no experience impact stated.`,

	"blockers": `Category: Blockers

INCLUDE only feedback stating that the customer CANNOT COMPLETE something: a task, an integration, a workflow, or an adoption step. The feedback must name the thing that is blocked, not merely a degraded experience.

EXCLUDE:
- General complaints or frustrations without a blocked outcome - those belong to Pain Points.
- Slow-but-working functionality.
- Requests for new capabilities.`,

	"customer_requests": `Category: Customer Requests

INCLUDE only feedback containing an explicit, actionable ask: "add X", "support Y", "we need Z", "please let us configure W".

EXCLUDE:
- Vague wishes ("it would be nice if things were better").
- Complaints that imply but do not state a request.
- Feedback on how an existing feature performs - that belongs to Solution Feedback.`,

	"solution_feedback": `Category: Solution Feedback

INCLUDE feedback evaluating how an EXISTING feature or solution performs: quality, accuracy, speed, reliability, usefulness - positive or negative.

EXCLUDE:
- Requests for features that do not exist yet.
- Feedback about being unable to complete a task.
- General product sentiment with no specific feature named.`,
}

// TopicAnalysis builds the (system, user) prompt pair for scoring one
// chunk against one topic.
func TopicAnalysis(topic Topic, chunkContent string) (string, string, error) {
	criteria, ok := topicCriteria[topic.Key]
	if !ok {
		return "", "", fmt.Errorf("no prompt defined for topic %q", topic.Key)
	}

	user := fmt.Sprintf(`%s

%s

Customer feedback:
"""
%s
"""`, criteria, jsonContract, chunkContent)

	return analysisSystemPrompt, user, nil
}

const groupingSystemPrompt = `You are a customer-feedback analyst. You cluster customer quotes into a small number of synthesized insights. You respond with JSON only.`

// QuoteGrouping builds the prompt asking the model to partition a
// topic's quotes into named insight groups. Quotes are referenced by
// their zero-based index.
func QuoteGrouping(topic Topic, quotes []string) (string, string) {
	var b strings.Builder
	for i, q := range quotes {
		fmt.Fprintf(&b, "[%d] %s\n", i, q)
	}

	user := fmt.Sprintf(`These customer quotes were all classified under the category "%s":

%s
Cluster them into 1 or more insight groups. Each group synthesizes a theme shared by its quotes. A quote may support more than one group, or none.

Respond with ONLY this JSON shape:
[{"insight_statement": "<one sentence synthesizing the theme>", "quote_indices": [<zero-based indices>], "recommendations": ["<2-3 recommendations specific to this group>"]}]`,
		topic.Name, b.String())

	return groupingSystemPrompt, user
}

const evalSystemPrompt = `You are a strict quality auditor for an automated feedback-analysis pipeline. You respond with JSON only.`

// HallucinationCheck builds the prompt judging whether a stored insight
// is grounded in its source content. Quotes are held to a strict
// verbatim standard; recommendations and summaries are derived text and
// get a lenient standard.
func HallucinationCheck(mode, reference, response string) (string, string) {
	user := fmt.Sprintf(`Category frame: %s

Source content:
"""
%s
"""

Claim produced by the pipeline:
"""
%s
"""

Judge whether the claim is supported by the source content.
- If the claim is a verbatim customer quote, it must actually appear in the source (minor whitespace differences allowed). Be strict.
- If the claim is a recommendation or summary, it only needs to be a reasonable derivation of the source. Be lenient.

Respond with ONLY:
{"verdict": "factual"} or {"verdict": "hallucinated"}`, mode, reference, response)

	return evalSystemPrompt, user
}

// RelevanceCheck builds the prompt judging whether stored insight text
// belongs under the named category. The category definitions are
// repeated verbatim so the judgment is grounded in the same criteria
// the analyzer used.
func RelevanceCheck(mode, content string) (string, string) {
	var defs strings.Builder
	for _, t := range Topics {
		defs.WriteString(topicCriteria[t.Key])
		defs.WriteString("\n\n")
	}

	user := fmt.Sprintf(`Category definitions:

%sText to classify:
"""
%s
"""

Does this text belong under the category "%s" per the definitions above?

Respond with ONLY:
{"verdict": "relevant"} or {"verdict": "unrelated"}`, defs.String(), content, mode)

	return evalSystemPrompt, user
}

const chatSystemPrompt = `You are a customer-feedback assistant. Answer questions using ONLY the provided feedback excerpts. Cite excerpts by their chunk id in [brackets]. If the excerpts do not cover the question, say so.`

// ChatAnswer builds the retrieval-augmented chat prompt.
func ChatAnswer(question, contextBlock string) (string, string) {
	user := fmt.Sprintf(`Feedback excerpts:
%s

Question: %s`, contextBlock, question)

	return chatSystemPrompt, user
}
