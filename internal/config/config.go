package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration. It is loaded once at
// startup and passed into constructors; nothing reads the environment ad hoc.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Worker    WorkerConfig    `yaml:"worker" mapstructure:"worker"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Sentiment SentimentConfig `yaml:"sentiment" mapstructure:"sentiment"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// RedisConfig holds the Redis connection used by the queue transport.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// QueueConfig configures the job transport.
type QueueConfig struct {
	Driver             string `yaml:"driver" mapstructure:"driver"`
	ReceiveTimeoutSecs int    `yaml:"receive_timeout_secs" mapstructure:"receive_timeout_secs"`
}

// WorkerConfig configures the worker pools.
type WorkerConfig struct {
	Concurrency      int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	StageTimeoutSecs int `yaml:"stage_timeout_secs" mapstructure:"stage_timeout_secs"`
}

// ScrapeConfig configures outbound scraping behavior.
type ScrapeConfig struct {
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// SentimentConfig holds the sentiment classification API settings.
type SentimentConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnalysisConfig holds the keyword analysis API settings.
type AnalysisConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OPTIMETRICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.receive_timeout_secs", 5)
	v.SetDefault("worker.concurrency", 2)
	v.SetDefault("worker.max_retries", 3)
	v.SetDefault("worker.stage_timeout_secs", 60)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.requests_per_sec", 2)
	v.SetDefault("scrape.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36")
	v.SetDefault("sentiment.base_url", "https://api.aimlapi.com/v1")
	v.SetDefault("sentiment.model", "mistralai/Mistral-7B-Instruct-v0.2")
	v.SetDefault("analysis.base_url", "https://api.x.ai/v1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
