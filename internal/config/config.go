// Package config loads and holds the application configuration.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Conf is the global configuration, populated by Init from the YAML file.
var Conf Config

// Config mirrors the structure of config.yaml.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Matching      MatchingConfig      `mapstructure:"matching"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig holds all database connection settings.
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig holds the MySQL settings.
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig holds the Redis settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig holds the logging settings.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig holds the Kafka settings. IngestTopic carries catalog
// ingestion tasks, EventTopic carries catalog state-transition events.
type KafkaConfig struct {
	Brokers     string `mapstructure:"brokers"`
	IngestTopic string `mapstructure:"ingest_topic"`
	EventTopic  string `mapstructure:"event_topic"`
}

// ElasticsearchConfig holds the Elasticsearch settings.
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig holds the object storage settings for raw catalog files.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig holds the embedding model settings. Dimensions must match
// the vectors stored in the catalog index exactly; a mismatch is fatal at
// startup.
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig holds the chat-completion model settings used for attribute
// extraction and tie-break arbitration.
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	TimeoutSec int                 `mapstructure:"timeout_sec"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig controls generation parameters (optional).
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// MatchingConfig is the run-level configuration of the codification engine.
// Unknown keys in the matching section are rejected at load time so a typo
// in a weight name cannot silently fall back to a default.
type MatchingConfig struct {
	WEmbed              float64 `mapstructure:"w_embed"`
	WFuzzy              float64 `mapstructure:"w_fuzzy"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	FuzzyMatchThreshold float64 `mapstructure:"fuzzy_match_threshold"`
	THigh               float64 `mapstructure:"t_high"`
	TLow                float64 `mapstructure:"t_low"`
	TieEpsilon          float64 `mapstructure:"tie_epsilon"`
	AttributeDelta      float64 `mapstructure:"attribute_delta"`
	TopK                int     `mapstructure:"top_k"`
	ChunkSize           int     `mapstructure:"chunk_size"`
	MaxConcurrency      int     `mapstructure:"max_concurrency"`
}

// DefaultMatching returns the documented defaults for the matching section.
func DefaultMatching() MatchingConfig {
	return MatchingConfig{
		WEmbed:              0.7,
		WFuzzy:              0.3,
		SimilarityThreshold: 0.30,
		FuzzyMatchThreshold: 0.30,
		THigh:               0.90,
		TLow:                0.70,
		TieEpsilon:          0.02,
		AttributeDelta:      0.05,
		TopK:                50,
		ChunkSize:           20,
		MaxConcurrency:      5,
	}
}

// Validate checks the matching options for internally consistent values.
func (m MatchingConfig) Validate() error {
	if m.WEmbed < 0 || m.WFuzzy < 0 || m.WEmbed+m.WFuzzy == 0 {
		return fmt.Errorf("matching: weights must be non-negative and not both zero (w_embed=%v, w_fuzzy=%v)", m.WEmbed, m.WFuzzy)
	}
	if m.THigh < m.TLow {
		return fmt.Errorf("matching: t_high (%v) must be >= t_low (%v)", m.THigh, m.TLow)
	}
	if m.THigh > 1 || m.TLow < 0 {
		return fmt.Errorf("matching: thresholds must lie in [0,1] (t_high=%v, t_low=%v)", m.THigh, m.TLow)
	}
	if m.TieEpsilon < 0 || m.AttributeDelta < 0 {
		return fmt.Errorf("matching: tie_epsilon and attribute_delta must be non-negative")
	}
	if m.TopK <= 0 {
		return fmt.Errorf("matching: top_k must be positive, got %d", m.TopK)
	}
	if m.ChunkSize <= 0 || m.MaxConcurrency <= 0 {
		return fmt.Errorf("matching: chunk_size and max_concurrency must be positive (chunk_size=%d, max_concurrency=%d)", m.ChunkSize, m.MaxConcurrency)
	}
	return nil
}

// Init reads the YAML file at configPath and parses it into Conf.
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("failed to read config file: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("failed to unmarshal config: %w", err))
	}

	// The matching section starts from the documented defaults and is
	// re-decoded strictly: unknown keys are an error, not a silent no-op.
	Conf.Matching = DefaultMatching()
	if sub := viper.Sub("matching"); sub != nil {
		if err := sub.UnmarshalExact(&Conf.Matching); err != nil {
			panic(fmt.Errorf("invalid matching config: %w", err))
		}
	}
	if err := Conf.Matching.Validate(); err != nil {
		panic(err)
	}
	if Conf.Embedding.Dimensions <= 0 {
		panic(fmt.Errorf("embedding.dimensions must be positive, got %d", Conf.Embedding.Dimensions))
	}
}
