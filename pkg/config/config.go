package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	SQLite   SQLiteConfig
	Redis    RedisConfig
	Milvus   MilvusConfig
	LLM      LLMConfig
	Analysis AnalysisConfig
	Worker   WorkerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type MilvusConfig struct {
	Endpoint       string
	APIKey         string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	APIKey              string
	Model               string
	EmbeddingModel      string
	AnalysisTemperature float32
	EvalTemperature     float32
	MaxTokens           int
}

type AnalysisConfig struct {
	BatchSize          int
	BatchPauseMs       int
	RelevanceThreshold int
	MaxRecommendations int
	MaxStreamChunks    int
	SkipThreshold      int
	CacheTTLMinutes    int
}

type WorkerConfig struct {
	Enabled         bool
	StartupDelaySec int
	IntervalSec     int
	PageSize        int
	SubBatchSize    int
	SubBatchPauseMs int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/feedbacklens")

	viper.SetEnvPrefix("FEEDBACK_LENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 60)
	viper.SetDefault("server.writeTimeout", 300)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/feedbacklens.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("milvus.endpoint", "localhost:19530")
	viper.SetDefault("milvus.collectionName", "feedback_chunks")
	viper.SetDefault("milvus.vectorDim", 1536)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.analysisTemperature", 0.1)
	viper.SetDefault("llm.evalTemperature", 0.0)
	viper.SetDefault("llm.maxTokens", 1024)

	viper.SetDefault("analysis.batchSize", 3)
	viper.SetDefault("analysis.batchPauseMs", 500)
	viper.SetDefault("analysis.relevanceThreshold", 4)
	viper.SetDefault("analysis.maxRecommendations", 3)
	viper.SetDefault("analysis.maxStreamChunks", 20)
	viper.SetDefault("analysis.skipThreshold", 30)
	viper.SetDefault("analysis.cacheTTLMinutes", 60)

	viper.SetDefault("worker.enabled", true)
	viper.SetDefault("worker.startupDelaySec", 30)
	viper.SetDefault("worker.intervalSec", 60)
	viper.SetDefault("worker.pageSize", 20)
	viper.SetDefault("worker.subBatchSize", 5)
	viper.SetDefault("worker.subBatchPauseMs", 1000)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
