package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	// 环境配置
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`
	Timezone    string `mapstructure:"APP_TIMEZONE"`

	// 数据库配置
	UseLocalDB   bool   `mapstructure:"USE_LOCAL_DB"`
	LocalDataDir string `mapstructure:"LOCAL_DATA_DIR"`
	PostgresDSN  string `mapstructure:"POSTGRES_DSN"`
	SupabaseURL  string `mapstructure:"SUPABASE_URL"`
	SupabaseKey  string `mapstructure:"SUPABASE_SERVICE_KEY"`

	// JWT配置
	JWTSecret string `mapstructure:"JWT_SECRET"`

	// 计费回调签名密钥（为空时关闭 webhook）
	BillingWebhookSecret string `mapstructure:"BILLING_WEBHOOK_SECRET"`

	// 限流（未配置 REDIS_URL 时关闭）
	RedisURL           string `mapstructure:"REDIS_URL"`
	RateLimitPerMinute int    `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// 定时任务
	SubscriptionExpirySchedule string `mapstructure:"SUBSCRIPTION_EXPIRY_SCHEDULE"`
	StreakDecaySchedule        string `mapstructure:"STREAK_DECAY_SCHEDULE"`

	// CORS配置
	AllowedOriginsRaw string   `mapstructure:"ALLOWED_ORIGINS"`
	AllowedOrigins    []string `mapstructure:"-"`

	// 调试配置
	Debug bool `mapstructure:"DEBUG"`
}

const defaultJWTSecret = "your-secret-key-change-in-production"

var envKeys = []string{
	"ENVIRONMENT", "PORT", "APP_TIMEZONE",
	"USE_LOCAL_DB", "LOCAL_DATA_DIR", "POSTGRES_DSN", "SUPABASE_URL", "SUPABASE_SERVICE_KEY",
	"JWT_SECRET", "BILLING_WEBHOOK_SECRET", "REDIS_URL", "RATE_LIMIT_PER_MINUTE",
	"SUBSCRIPTION_EXPIRY_SCHEDULE", "STREAK_DECAY_SCHEDULE",
	"ALLOWED_ORIGINS", "DEBUG",
}

// LoadConfig 加载配置（支持本地和Vercel环境）
func LoadConfig() (*Config, error) {
	// 根据环境加载对应的 .env 文件；已存在的环境变量优先
	switch os.Getenv("ENVIRONMENT") {
	case "production":
		_ = godotenv.Load(".env.production")
	default:
		_ = godotenv.Load(".env.local")
	}

	v := viper.New()
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "3000")
	v.SetDefault("APP_TIMEZONE", "UTC")
	v.SetDefault("USE_LOCAL_DB", true)
	v.SetDefault("LOCAL_DATA_DIR", "./data")
	v.SetDefault("JWT_SECRET", defaultJWTSecret)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("SUBSCRIPTION_EXPIRY_SCHEDULE", "15 * * * *") // 每小时第15分钟
	v.SetDefault("STREAK_DECAY_SCHEDULE", "5 0 * * *")         // 每天 00:05
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("DEBUG", false)
	v.AutomaticEnv()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// Trim whitespace to avoid trailing spaces/newlines from env sources
	cfg.PostgresDSN = strings.TrimSpace(cfg.PostgresDSN)
	cfg.SupabaseURL = strings.TrimSpace(cfg.SupabaseURL)
	cfg.SupabaseKey = strings.TrimSpace(cfg.SupabaseKey)
	cfg.RedisURL = strings.TrimSpace(cfg.RedisURL)
	cfg.BillingWebhookSecret = strings.TrimSpace(cfg.BillingWebhookSecret)

	if strings.TrimSpace(cfg.AllowedOriginsRaw) == "*" {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		for _, origin := range strings.Split(cfg.AllowedOriginsRaw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	// 配置了外部数据库时不再使用本地文件库
	if cfg.PostgresDSN != "" || (cfg.SupabaseURL != "" && cfg.SupabaseKey != "") {
		cfg.UseLocalDB = false
	}

	if cfg.IsProduction() {
		if cfg.UseLocalDB {
			slog.Warn("production environment using local file database; configure POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
		}
		cfg.Debug = false
	}

	return &cfg, nil
}

// Cached config (initialized once per cold start)
var (
	cachedConfig *Config
	cachedErr    error
	configOnce   sync.Once
)

// GetCached returns the process-wide cached Config.
// On serverless (Vercel), it initializes once per cold start and
// reuses it across warm invocations, avoiding per-request parsing.
func GetCached() (*Config, error) {
	configOnce.Do(func() {
		cachedConfig, cachedErr = LoadConfig()
	})
	return cachedConfig, cachedErr
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.JWTSecret == "" || c.JWTSecret == defaultJWTSecret {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET must be set in production")
		}
		slog.Warn("using default JWT secret (not recommended for production)")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid APP_TIMEZONE %q: %w", c.Timezone, err)
	}

	if !c.UseLocalDB && c.PostgresDSN == "" && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return fmt.Errorf("database configuration incomplete: set POSTGRES_DSN or SUPABASE_URL+SUPABASE_SERVICE_KEY")
	}

	return nil
}

// Location 返回用于计算"今天"的时区，无效时回退到 UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// NewLogger 根据环境构造结构化日志：生产环境 JSON，其余为文本
func (c *Config) NewLogger() *slog.Logger {
	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
