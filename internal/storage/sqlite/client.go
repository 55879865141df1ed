package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/storage/models"
	"github.com/feedbacklens/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS uploaded_files (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		source_type TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_chunks (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		content TEXT NOT NULL,
		original_date INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (file_id) REFERENCES uploaded_files(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file ON file_chunks(file_id);

	CREATE TABLE IF NOT EXISTS llm_insights (
		id TEXT PRIMARY KEY,
		file_id TEXT,
		insight_type TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_insights_type ON llm_insights(insight_type);
	CREATE INDEX IF NOT EXISTS idx_insights_created ON llm_insights(created_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertFile(file *models.UploadedFile) error {
	query := `INSERT INTO uploaded_files (id, name, source_type, created_at) VALUES (?, ?, ?, ?)`

	_, err := c.db.Exec(query, file.ID, file.Name, file.SourceType, file.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert file: %w", err)
	}

	logger.Debug("File inserted", zap.String("file_id", file.ID), zap.String("name", file.Name))
	return nil
}

func (c *Client) InsertChunk(chunk *models.Chunk) error {
	query := `INSERT INTO file_chunks (id, file_id, chunk_index, content, original_date, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	var originalDate interface{}
	if chunk.OriginalDate != nil {
		originalDate = chunk.OriginalDate.Unix()
	}

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.FileID,
		chunk.ChunkIndex,
		chunk.Content,
		originalDate,
		chunk.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	return nil
}

func (c *Client) ListChunks() ([]models.Chunk, error) {
	query := `SELECT id, file_id, chunk_index, content, original_date, created_at FROM file_chunks ORDER BY created_at, chunk_index`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		var originalDate sql.NullInt64
		var createdAt int64

		err := rows.Scan(&ch.ID, &ch.FileID, &ch.ChunkIndex, &ch.Content, &originalDate, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if originalDate.Valid {
			t := time.Unix(originalDate.Int64, 0)
			ch.OriginalDate = &t
		}
		ch.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, ch)
	}

	return chunks, rows.Err()
}

func (c *Client) GetChunkContent(chunkID string) (string, error) {
	var content string
	err := c.db.QueryRow(`SELECT content FROM file_chunks WHERE id = ?`, chunkID).Scan(&content)
	if err != nil {
		return "", fmt.Errorf("failed to get chunk content: %w", err)
	}
	return content, nil
}

func (c *Client) CountChunks() (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(*) FROM file_chunks`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

func (c *Client) InsertInsightRows(insights []models.Insight) error {
	if len(insights) == 0 {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO llm_insights (id, file_id, insight_type, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, ins := range insights {
		metadataJSON, err := json.Marshal(ins.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}

		_, err = stmt.Exec(ins.ID, ins.FileID, ins.InsightType, ins.Content, string(metadataJSON), ins.CreatedAt.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert insight: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	logger.Debug("Insight rows inserted", zap.Int("count", len(insights)))
	return nil
}

// QueryInsightsMissingEval returns up to limit rows whose metadata has
// no eval sub-object. Presence of that field is the worker's sole
// idempotency marker.
func (c *Client) QueryInsightsMissingEval(limit int) ([]models.Insight, error) {
	query := `
		SELECT id, file_id, insight_type, content, metadata, created_at
		FROM llm_insights
		WHERE json_extract(metadata, '$.eval') IS NULL
		ORDER BY created_at
		LIMIT ?
	`

	rows, err := c.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unevaluated insights: %w", err)
	}
	defer rows.Close()

	return scanInsights(rows)
}

// UpdateInsightEval merges the eval sub-object into the row's metadata,
// preserving sibling keys that an older or newer writer may have set.
func (c *Client) UpdateInsightEval(id string, eval *models.Evaluation) error {
	var metadataJSON string
	err := c.db.QueryRow(`SELECT metadata FROM llm_insights WHERE id = ?`, id).Scan(&metadataJSON)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(metadataJSON), &merged); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	evalJSON, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("failed to marshal eval: %w", err)
	}
	merged["eval"] = evalJSON

	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = c.db.Exec(`UPDATE llm_insights SET metadata = ? WHERE id = ?`, string(out), id)
	if err != nil {
		return fmt.Errorf("failed to update metadata: %w", err)
	}

	return nil
}

func (c *Client) DeleteInsightsByTypeLike(pattern string) error {
	res, err := c.db.Exec(`DELETE FROM llm_insights WHERE insight_type LIKE ?`, pattern)
	if err != nil {
		return fmt.Errorf("failed to delete insights: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.Debug("Insight rows deleted", zap.String("pattern", pattern), zap.Int64("count", n))
	}
	return nil
}

func (c *Client) ListInsightsByTypeLike(pattern string) ([]models.Insight, error) {
	query := `
		SELECT id, file_id, insight_type, content, metadata, created_at
		FROM llm_insights
		WHERE insight_type LIKE ?
		ORDER BY created_at
	`

	rows, err := c.db.Query(query, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	return scanInsights(rows)
}

func (c *Client) ListInsights() ([]models.Insight, error) {
	query := `
		SELECT id, file_id, insight_type, content, metadata, created_at
		FROM llm_insights
		ORDER BY created_at DESC
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights: %w", err)
	}
	defer rows.Close()

	return scanInsights(rows)
}

// LatestRunID returns the run_id of the most recently written analysis
// rows, or "" when no analysis has run yet.
func (c *Client) LatestRunID() (string, error) {
	query := `
		SELECT json_extract(metadata, '$.run_id')
		FROM llm_insights
		WHERE json_extract(metadata, '$.run_id') IS NOT NULL
		ORDER BY created_at DESC
		LIMIT 1
	`

	var runID sql.NullString
	err := c.db.QueryRow(query).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get latest run id: %w", err)
	}
	return runID.String, nil
}

func (c *Client) ListInsightsByRun(runID string) ([]models.Insight, error) {
	query := `
		SELECT id, file_id, insight_type, content, metadata, created_at
		FROM llm_insights
		WHERE json_extract(metadata, '$.run_id') = ?
		ORDER BY created_at
	`

	rows, err := c.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list insights by run: %w", err)
	}
	defer rows.Close()

	return scanInsights(rows)
}

func (c *Client) CountInsights() (total, evaluated int, err error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN json_extract(metadata, '$.eval') IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM llm_insights
	`
	err = c.db.QueryRow(query).Scan(&total, &evaluated)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count insights: %w", err)
	}
	return total, evaluated, nil
}

func scanInsights(rows *sql.Rows) ([]models.Insight, error) {
	var insights []models.Insight
	for rows.Next() {
		var ins models.Insight
		var fileID sql.NullString
		var metadataJSON string
		var createdAt int64

		err := rows.Scan(&ins.ID, &fileID, &ins.InsightType, &ins.Content, &metadataJSON, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if fileID.Valid {
			ins.FileID = &fileID.String
		}
		if err := json.Unmarshal([]byte(metadataJSON), &ins.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata for %s: %w", ins.ID, err)
		}
		ins.CreatedAt = time.Unix(createdAt, 0)
		insights = append(insights, ins)
	}

	return insights, rows.Err()
}
