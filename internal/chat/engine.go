package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/prompts"
	"github.com/feedbacklens/backend/internal/vector/milvus"
	"github.com/feedbacklens/backend/pkg/logger"
)

const defaultTopK = 5

// Engine answers free-form questions about the ingested feedback,
// grounded on the chunks retrieved from the vector store.
type Engine struct {
	vectorDB *milvus.Client
	llm      llm.Completer
	embedder llm.Embedder
}

type Answer struct {
	Response string   `json:"response"`
	ChunkIDs []string `json:"chunk_ids"`
}

func NewEngine(vectorDB *milvus.Client, completer llm.Completer, embedder llm.Embedder) *Engine {
	return &Engine{
		vectorDB: vectorDB,
		llm:      completer,
		embedder: embedder,
	}
}

func (e *Engine) Ask(ctx context.Context, question string) (*Answer, error) {
	if e.vectorDB == nil {
		return nil, fmt.Errorf("vector store is not configured")
	}

	embedding, err := e.embedder.GenerateEmbedding(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	results, err := e.vectorDB.Search(ctx, embedding, defaultTopK)
	if err != nil {
		return nil, fmt.Errorf("failed to search feedback: %w", err)
	}
	if len(results) == 0 {
		return &Answer{Response: "No ingested feedback matched the question.", ChunkIDs: []string{}}, nil
	}

	var contextBlock strings.Builder
	chunkIDs := make([]string, 0, len(results))
	for _, r := range results {
		fmt.Fprintf(&contextBlock, "[%s] %s\n", r.ChunkID, r.Content)
		chunkIDs = append(chunkIDs, r.ChunkID)
	}

	systemPrompt, userPrompt := prompts.ChatAnswer(question, contextBlock.String())

	resp, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    1024,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Info("Chat question answered",
		zap.String("question", question),
		zap.Int("context_chunks", len(results)),
	)

	return &Answer{
		Response: resp.Content,
		ChunkIDs: chunkIDs,
	}, nil
}
