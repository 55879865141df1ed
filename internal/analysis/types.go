package analysis

// Snippet is a verbatim quote supporting a topic classification.
type Snippet struct {
	Text      string `json:"text"`
	Relevance int    `json:"relevance"`
	ChunkID   string `json:"chunk_id,omitempty"`
	Source    string `json:"source,omitempty"`
}

// TopicResult is the normalized output of one (chunk, topic) analysis
// call. A zero TopicResult means "no contribution", which is also the
// fallback for any failed call.
type TopicResult struct {
	RelevanceScore  int
	Snippets        []Snippet
	Recommendations []string
}

// TopicInsight is the aggregated, per-topic result of one analysis
// run. TotalMentions always equals len(Snippets); the chart value and
// the mentions label are the same number.
type TopicInsight struct {
	Topic           string    `json:"topic"`
	Summary         string    `json:"summary"`
	Snippets        []Snippet `json:"snippets"`
	Recommendations []string  `json:"recommendations"`
	TotalMentions   int       `json:"total_mentions"`
}

type ChartPoint struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

type Result struct {
	ChartData []ChartPoint   `json:"chartData"`
	Insights  []TopicInsight `json:"insights"`
}
