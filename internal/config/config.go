package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store        StoreConfig        `yaml:"store" mapstructure:"store"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Providers    ProvidersConfig    `yaml:"providers" mapstructure:"providers"`
	Pricing      PricingConfig      `yaml:"pricing" mapstructure:"pricing"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator" mapstructure:"orchestrator"`
	Scheduler    SchedulerConfig    `yaml:"scheduler" mapstructure:"scheduler"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig holds optional connection pool tuning for the postgres driver.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ProvidersConfig holds system-wide provider credentials and model lists.
// User-supplied credentials resolved at orchestration time take precedence;
// these keys are the fallback.
type ProvidersConfig struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key    string   `yaml:"key" mapstructure:"key"`
	Models []string `yaml:"models" mapstructure:"models"`
	RPS    float64  `yaml:"rps" mapstructure:"rps"`
}

// GeminiConfig holds Google Gemini API settings.
type GeminiConfig struct {
	Key    string   `yaml:"key" mapstructure:"key"`
	Models []string `yaml:"models" mapstructure:"models"`
	RPS    float64  `yaml:"rps" mapstructure:"rps"`
}

// OpenAIConfig holds OpenAI-compatible API settings.
type OpenAIConfig struct {
	Key     string   `yaml:"key" mapstructure:"key"`
	BaseURL string   `yaml:"base_url" mapstructure:"base_url"`
	Models  []string `yaml:"models" mapstructure:"models"`
	RPS     float64  `yaml:"rps" mapstructure:"rps"`
}

// PricingConfig holds per-provider token pricing overrides.
type PricingConfig struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
	OpenAI    map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
}

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// OrchestratorConfig configures query orchestration.
type OrchestratorConfig struct {
	CallTimeoutSecs int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	// ProgressEvery emits a progress event after every N settled calls.
	ProgressEvery int `yaml:"progress_every" mapstructure:"progress_every"`
}

// QueueConfig configures one scheduler queue.
type QueueConfig struct {
	Attempts      int `yaml:"attempts" mapstructure:"attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
}

// SchedulerConfig configures the job scheduler.
type SchedulerConfig struct {
	Orchestration QueueConfig `yaml:"orchestration" mapstructure:"orchestration"`
	Scoring       QueueConfig `yaml:"scoring" mapstructure:"scoring"`
	Workers       int         `yaml:"workers" mapstructure:"workers"`
	DLQSize       int         `yaml:"dlq_size" mapstructure:"dlq_size"`
}

// CacheConfig configures the result view cache.
type CacheConfig struct {
	TTLSecs int `yaml:"ttl_secs" mapstructure:"ttl_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AICOMPARE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "aicompare.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("providers.anthropic.models", []string{
		"claude-haiku-4-5-20251001",
		"claude-sonnet-4-5-20250929",
	})
	v.SetDefault("providers.anthropic.rps", 5.0)
	v.SetDefault("providers.gemini.models", []string{
		"gemini-2.5-flash",
		"gemini-2.5-pro",
	})
	v.SetDefault("providers.gemini.rps", 5.0)
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openai.models", []string{
		"gpt-4o",
		"gpt-4o-mini",
	})
	v.SetDefault("providers.openai.rps", 5.0)
	v.SetDefault("orchestrator.call_timeout_secs", 30)
	v.SetDefault("orchestrator.progress_every", 1)
	v.SetDefault("scheduler.orchestration.attempts", 2)
	v.SetDefault("scheduler.orchestration.backoff_base_ms", 5000)
	v.SetDefault("scheduler.scoring.attempts", 3)
	v.SetDefault("scheduler.scoring.backoff_base_ms", 2000)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.dlq_size", 100)
	v.SetDefault("cache.ttl_secs", 300)

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
