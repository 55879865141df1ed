package ingestion

import (
	"context"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/llm"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/internal/storage/sqlite"
	"github.com/feedbacklens/backend/internal/vector/milvus"
	"github.com/feedbacklens/backend/pkg/logger"
)

// Processor is thin I/O glue: it turns uploaded feedback documents
// into date-tagged chunk rows and best-effort chunk embeddings. The
// analysis pipeline only ever sees the resulting chunks.
type Processor struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	embedder  llm.Embedder
	chunkSize int
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, embedder llm.Embedder) *Processor {
	return &Processor{
		db:        db,
		vectorDB:  vectorDB,
		embedder:  embedder,
		chunkSize: 1000,
	}
}

// ProcessDocument ingests one uploaded document. sourceType selects
// the transformer: "csv" treats each row as one feedback record,
// "html" strips Notion-export markup, anything else is plain text.
func (p *Processor) ProcessDocument(ctx context.Context, name, sourceType, content string) (string, int, error) {
	var records []string

	switch sourceType {
	case "csv":
		var err error
		records, err = splitCSV(content)
		if err != nil {
			return "", 0, fmt.Errorf("failed to parse CSV: %w", err)
		}
	case "html":
		records = p.chunkText(stripHTML(content))
	default:
		records = p.chunkText(content)
	}

	if len(records) == 0 {
		return "", 0, fmt.Errorf("no content extracted from document")
	}

	fileID := uuid.New().String()
	file := &models.UploadedFile{
		ID:         fileID,
		Name:       name,
		SourceType: sourceType,
		CreatedAt:  time.Now(),
	}

	if err := p.db.InsertFile(file); err != nil {
		return "", 0, fmt.Errorf("failed to insert file: %w", err)
	}

	chunks := make([]models.Chunk, 0, len(records))
	for i, record := range records {
		record = strings.TrimSpace(record)
		if record == "" {
			continue
		}
		chunks = append(chunks, models.Chunk{
			ID:           uuid.New().String(),
			FileID:       fileID,
			ChunkIndex:   i,
			Content:      record,
			OriginalDate: extractOriginalDate(record),
			CreatedAt:    time.Now(),
		})
	}

	for i := range chunks {
		if err := p.db.InsertChunk(&chunks[i]); err != nil {
			return "", 0, fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	p.indexEmbeddings(ctx, chunks)

	metrics.DocumentsIngested.Inc()
	metrics.ChunksIngested.Add(float64(len(chunks)))

	logger.Info("Document ingested",
		zap.String("file_id", fileID),
		zap.String("name", name),
		zap.String("source_type", sourceType),
		zap.Int("chunks", len(chunks)),
	)

	return fileID, len(chunks), nil
}

// indexEmbeddings is best-effort: the chat assistant degrades without
// embeddings, the analysis pipeline does not depend on them.
func (p *Processor) indexEmbeddings(ctx context.Context, chunks []models.Chunk) {
	if p.vectorDB == nil || p.embedder == nil {
		return
	}

	embeddings := make([]milvus.ChunkEmbedding, 0, len(chunks))
	for _, chunk := range chunks {
		vec, err := p.embedder.GenerateEmbedding(ctx, chunk.Content)
		if err != nil {
			logger.Warn("Failed to embed chunk", zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		embeddings = append(embeddings, milvus.ChunkEmbedding{
			ChunkID:   chunk.ID,
			FileID:    chunk.FileID,
			Content:   chunk.Content,
			Embedding: vec,
			CreatedAt: chunk.CreatedAt,
		})
	}

	if len(embeddings) == 0 {
		return
	}
	if err := p.vectorDB.Insert(ctx, embeddings); err != nil {
		logger.Warn("Failed to index chunk embeddings", zap.Error(err))
	}
}

func splitCSV(content string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	var records []string
	for i, row := range rows {
		// Header heuristic: skip a short first row with no sentence
		// punctuation.
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		joined := strings.TrimSpace(strings.Join(row, " "))
		if joined != "" {
			records = append(records, joined)
		}
	}
	return records, nil
}

func looksLikeHeader(row []string) bool {
	for _, cell := range row {
		if len(cell) > 40 || strings.ContainsAny(cell, ".!?") {
			return false
		}
	}
	return true
}

func stripHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	text := doc.Find("body").Text()
	if text == "" {
		text = doc.Text()
	}

	text = regexp.MustCompile(`\s+`).ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func (p *Processor) chunkText(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > p.chunkSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		current.WriteString(word)
		current.WriteByte(' ')
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

var datePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]* \d{1,2},? \d{4})\b`)

// extractOriginalDate finds the date the feedback was originally
// produced, as opposed to upload time. Absent or unparseable dates
// leave the chunk undated.
func extractOriginalDate(content string) *time.Time {
	m := datePattern.FindString(content)
	if m == "" {
		return nil
	}

	t, err := dateparse.ParseAny(m)
	if err != nil {
		return nil
	}
	return &t
}
