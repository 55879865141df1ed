package models

import "time"

type UploadedFile struct {
	ID        string
	Name      string
	SourceType string
	CreatedAt time.Time
}

type Chunk struct {
	ID           string
	FileID       string
	ChunkIndex   int
	Content      string
	OriginalDate *time.Time
	CreatedAt    time.Time
}

// Insight is one persisted unit of derived content. InsightType is the
// topic key plus a suffix: _quote, _recommendation, _summary or
// _grouped_insight.
type Insight struct {
	ID          string
	FileID      *string
	InsightType string
	Content     string
	Metadata    Metadata
	CreatedAt   time.Time
}

// Metadata is the structured optional-fields record stored as JSON
// alongside each insight row. The eval sub-object is merge-updated by
// the evaluation worker without clobbering sibling fields.
type Metadata struct {
	Topic           string       `json:"topic,omitempty"`
	RunID           string       `json:"run_id,omitempty"`
	ChunkID         string       `json:"chunk_id,omitempty"`
	Relevance       int          `json:"relevance,omitempty"`
	Source          string       `json:"source,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	InsightIndex    *int         `json:"insight_index,omitempty"`
	Quotes          []GroupQuote `json:"quotes,omitempty"`
	Recommendations []string     `json:"recommendations,omitempty"`
	Eval            *Evaluation  `json:"eval,omitempty"`
}

// GroupQuote is a supporting quote inside a grouped insight, carrying
// its originating chunk for traceability.
type GroupQuote struct {
	Text      string `json:"text"`
	ChunkID   string `json:"chunk_id,omitempty"`
	Source    string `json:"source,omitempty"`
	Relevance int    `json:"relevance,omitempty"`
}

type Evaluation struct {
	Relevance     string    `json:"relevance"`
	Hallucination string    `json:"hallucination"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
	Mode          string    `json:"mode"`
}

const (
	RelevanceRelevant  = "relevant"
	RelevanceUnrelated = "unrelated"

	HallucinationFactual      = "factual"
	HallucinationHallucinated = "hallucinated"
)
