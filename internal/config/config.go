// Package config 提供配置加载和管理功能
package config

import (
	"fmt"
	"time"
)

// Config 应用配置根结构
type Config struct {
	App           AppConfig           `yaml:"app" mapstructure:"app"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
	Database      DatabaseConfig      `yaml:"database" mapstructure:"database"`
	Cache         CacheConfig         `yaml:"cache" mapstructure:"cache"`
	LLM           LLMConfig           `yaml:"llm" mapstructure:"llm"`
	Generation    GenerationConfig    `yaml:"generation" mapstructure:"generation"`
	Ledger        LedgerConfig        `yaml:"ledger" mapstructure:"ledger"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Security      SecurityConfig      `yaml:"security" mapstructure:"security"`
	Bootstrap     BootstrapConfig     `yaml:"bootstrap" mapstructure:"bootstrap"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name    string `yaml:"name" mapstructure:"name"`
	Version string `yaml:"version" mapstructure:"version"`
	Env     string `yaml:"env" mapstructure:"env"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPServerConfig `yaml:"http" mapstructure:"http"`
}

// HTTPServerConfig HTTP 服务器配置
type HTTPServerConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres" mapstructure:"postgres"`
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	User            string        `yaml:"user" mapstructure:"user"`
	Password        string        `yaml:"password" mapstructure:"password"`
	Database        string        `yaml:"database" mapstructure:"database"`
	SSLMode         string        `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Redis          RedisConfig   `yaml:"redis" mapstructure:"redis"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl" mapstructure:"leaderboard_ttl"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host         string        `yaml:"host" mapstructure:"host"`
	Port         int           `yaml:"port" mapstructure:"port"`
	Password     string        `yaml:"password" mapstructure:"password"`
	DB           int           `yaml:"db" mapstructure:"db"`
	PoolSize     int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider" mapstructure:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig LLM 提供商配置
type ProviderConfig struct {
	APIKey  string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// GenerationConfig 内容生成配置
type GenerationConfig struct {
	DefaultModel    string        `yaml:"default_model" mapstructure:"default_model"`
	Concurrency     int           `yaml:"concurrency" mapstructure:"concurrency"`
	CallTimeout     time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	Temperature     float64       `yaml:"temperature" mapstructure:"temperature"`
	TopP            float64       `yaml:"top_p" mapstructure:"top_p"`
	TopK            int           `yaml:"top_k" mapstructure:"top_k"`
	MaxOutputTokens int           `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	// Models 模型目录；模型名包含 "."，因此用列表而不是 map
	Models []ModelConfig `yaml:"models" mapstructure:"models"`
}

// ModelConfig 单个模型的限额与能力
type ModelConfig struct {
	Name            string `yaml:"name" mapstructure:"name"`
	RPM             int    `yaml:"rpm" mapstructure:"rpm"`
	TPM             int    `yaml:"tpm" mapstructure:"tpm"`
	RPD             int    `yaml:"rpd" mapstructure:"rpd"`
	FunctionCalling bool   `yaml:"function_calling" mapstructure:"function_calling"`
	Leaderboard     bool   `yaml:"leaderboard" mapstructure:"leaderboard"`
}

// Model 按名称查找模型
func (c GenerationConfig) Model(name string) (ModelConfig, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return ModelConfig{}, false
}

// LedgerConfig 用量账本配置
type LedgerConfig struct {
	MaxAttempts int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
	// DailyPolicy: calendar_day | rolling_24h | daily_count
	DailyPolicy string `yaml:"daily_policy" mapstructure:"daily_policy"`
	// DailyCap daily_count 策略下 24 小时内允许的生成次数
	DailyCap int    `yaml:"daily_cap" mapstructure:"daily_cap"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// BootstrapConfig 初始化数据配置
type BootstrapConfig struct {
	AdminUserID string `yaml:"admin_user_id" mapstructure:"admin_user_id"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt" mapstructure:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors" mapstructure:"cors"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	Secret string `yaml:"secret" mapstructure:"secret"`
	Issuer string `yaml:"issuer" mapstructure:"issuer"`
}

// RateLimitConfig HTTP 限流配置
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" mapstructure:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" mapstructure:"allowed_headers"`
}

// DefaultModelCatalog 内置模型目录
func DefaultModelCatalog() []ModelConfig {
	return []ModelConfig{
		{Name: "gemini-2.0-flash", RPM: 15, TPM: 1000000, RPD: 1500, FunctionCalling: true, Leaderboard: true},
		{Name: "gemini-2.0-flash-lite-preview-02-05", RPM: 30, TPM: 1000000, RPD: 1500, Leaderboard: true},
		{Name: "gemini-2.0-pro-exp-02-05", RPM: 2, TPM: 1000000, RPD: 50, FunctionCalling: true, Leaderboard: true},
		{Name: "gemini-2.0-flash-thinking-exp-01-21", RPM: 10, TPM: 4000000, RPD: 1500, Leaderboard: true},
	}
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	if c.Generation.Concurrency <= 0 {
		return fmt.Errorf("generation.concurrency must be positive, got %d", c.Generation.Concurrency)
	}
	seen := make(map[string]struct{}, len(c.Generation.Models))
	for _, m := range c.Generation.Models {
		if m.Name == "" {
			return fmt.Errorf("generation.models: model name is required")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("generation.models: duplicate model %q", m.Name)
		}
		seen[m.Name] = struct{}{}
	}
	if _, ok := c.Generation.Model(c.Generation.DefaultModel); !ok {
		return fmt.Errorf("generation.default_model %q is not in the model catalog", c.Generation.DefaultModel)
	}
	switch c.Ledger.DailyPolicy {
	case "calendar_day", "rolling_24h":
	case "daily_count":
		if c.Ledger.DailyCap <= 0 {
			return fmt.Errorf("ledger.daily_cap must be positive for daily_count, got %d", c.Ledger.DailyCap)
		}
	default:
		return fmt.Errorf("ledger.daily_policy %q is not supported", c.Ledger.DailyPolicy)
	}
	if c.Ledger.MaxAttempts <= 0 {
		return fmt.Errorf("ledger.max_attempts must be positive, got %d", c.Ledger.MaxAttempts)
	}
	return nil
}
