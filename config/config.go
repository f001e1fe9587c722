package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds the application's configuration
type Config struct {
	WebHost  string `mapstructure:"WEB_HOST"`
	WebPort  int    `mapstructure:"WEB_PORT"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	ESHost          string `mapstructure:"ES_HOST"`
	ESPort          int    `mapstructure:"ES_PORT"`
	ESUsername      string `mapstructure:"ES_USERNAME"`
	ESPassword      string `mapstructure:"ES_PASSWORD"`
	ClauseIndex     string `mapstructure:"ES_CLAUSE_INDEX"`
	StructuredIndex string `mapstructure:"ES_STRUCTURED_INDEX"`
	TermIndex       string `mapstructure:"ES_TERM_INDEX"`

	LLMAPIURL        string `mapstructure:"LLM_API_URL"`
	LLMAppCode       string `mapstructure:"LLM_APP_CODE"`
	LLMModel         string `mapstructure:"LLM_MODEL"`
	EmbeddingURL     string `mapstructure:"EMBEDDING_URL"`
	EmbeddingAppCode string `mapstructure:"EMBEDDING_APP_CODE"`

	MaxRetries        int           `mapstructure:"MAX_RETRIES"`
	RetryBackoff      time.Duration `mapstructure:"RETRY_BACKOFF_MS"`
	RetryBackoffMax   time.Duration `mapstructure:"RETRY_BACKOFF_MAX_MS"`
	LLMRequestTimeout time.Duration `mapstructure:"LLM_REQUEST_TIMEOUT"`

	CandidateAnswers    int     `mapstructure:"CANDIDATE_ANSWERS"`
	CandidateSearchSize int     `mapstructure:"CANDIDATE_SEARCH_SIZE"`
	FinalPassages       int     `mapstructure:"FINAL_PASSAGES"`
	FuzzyTopK           int     `mapstructure:"FUZZY_TOP_K"`
	DedupProductSim     float64 `mapstructure:"DEDUP_PRODUCT_SIMILARITY"`
	DedupStructuredSim  float64 `mapstructure:"DEDUP_STRUCTURED_SIMILARITY"`
	DedupLengthRatio    float64 `mapstructure:"DEDUP_LENGTH_RATIO"`
	TermCacheSize       int     `mapstructure:"TERM_CACHE_SIZE"`

	StreamDelay time.Duration `mapstructure:"STREAM_DELAY_MS"`
}

func Load(logger *zap.Logger) *Config {
	var config Config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set default values
	viper.SetDefault("WEB_HOST", "0.0.0.0")
	viper.SetDefault("WEB_PORT", 8000)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("ES_HOST", "localhost")
	viper.SetDefault("ES_PORT", 9200)
	viper.SetDefault("ES_USERNAME", "")
	viper.SetDefault("ES_PASSWORD", "")
	viper.SetDefault("ES_CLAUSE_INDEX", "insurance_clauses")
	viper.SetDefault("ES_STRUCTURED_INDEX", "insurance_structured_chunk")
	viper.SetDefault("ES_TERM_INDEX", "insurance_term")
	viper.SetDefault("LLM_API_URL", "http://localhost:8080/v1/chat/completions")
	viper.SetDefault("LLM_APP_CODE", "")
	viper.SetDefault("LLM_MODEL", "qwen72b")
	viper.SetDefault("EMBEDDING_URL", "http://localhost:8081/v1/embeddings")
	viper.SetDefault("EMBEDDING_APP_CODE", "")
	viper.SetDefault("MAX_RETRIES", 3)
	viper.SetDefault("RETRY_BACKOFF_MS", 300)
	viper.SetDefault("RETRY_BACKOFF_MAX_MS", 10000)
	viper.SetDefault("LLM_REQUEST_TIMEOUT", 120)
	viper.SetDefault("CANDIDATE_ANSWERS", 3)
	viper.SetDefault("CANDIDATE_SEARCH_SIZE", 10)
	viper.SetDefault("FINAL_PASSAGES", 5)
	viper.SetDefault("FUZZY_TOP_K", 5)
	viper.SetDefault("DEDUP_PRODUCT_SIMILARITY", 0.5)
	viper.SetDefault("DEDUP_STRUCTURED_SIMILARITY", 0.6)
	viper.SetDefault("DEDUP_LENGTH_RATIO", 0.2)
	viper.SetDefault("TERM_CACHE_SIZE", 512)
	viper.SetDefault("STREAM_DELAY_MS", 300)

	if err := viper.ReadInConfig(); err != nil {
		if logger != nil {
			logger.Warn("Could not read config file, using defaults/env vars", zap.Error(err))
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		// Config unmarshaling is critical - fail fast during bootstrap
		if logger != nil {
			logger.Fatal("Unable to decode config into struct", zap.Error(err))
		} else {
			fmt.Fprintf(os.Stderr, "FATAL: Unable to decode config into struct: %v\n", err)
			os.Exit(1)
		}
	}

	// Convert milliseconds/seconds to proper time.Duration
	config.RetryBackoff = config.RetryBackoff * time.Millisecond
	config.RetryBackoffMax = config.RetryBackoffMax * time.Millisecond
	config.LLMRequestTimeout = config.LLMRequestTimeout * time.Second
	config.StreamDelay = config.StreamDelay * time.Millisecond

	return &config
}
