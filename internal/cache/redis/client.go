package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/feedbacklens/backend/internal/analysis"
	"github.com/feedbacklens/backend/internal/metrics"
	"github.com/feedbacklens/backend/pkg/logger"
)

// Client caches analysis aggregates so repeat requests over an
// unchanged chunk set can skip a full LLM pass.
type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetAnalysis(ctx context.Context, chunkSetHash string, result *analysis.Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analysis result: %w", err)
	}

	err = c.client.Set(ctx, "analysis:"+chunkSetHash, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set analysis cache: %w", err)
	}

	logger.Debug("Analysis result cached", zap.String("chunk_set", chunkSetHash), zap.Duration("ttl", ttl))
	return nil
}

func (c *Client) GetAnalysis(ctx context.Context, chunkSetHash string) (*analysis.Result, bool, error) {
	data, err := c.client.Get(ctx, "analysis:"+chunkSetHash).Bytes()
	if err == redis.Nil {
		metrics.CacheMisses.WithLabelValues("analysis").Inc()
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get analysis cache: %w", err)
	}

	var result analysis.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal analysis result: %w", err)
	}

	metrics.CacheHits.WithLabelValues("analysis").Inc()
	logger.Debug("Analysis cache hit", zap.String("chunk_set", chunkSetHash))
	return &result, true, nil
}
