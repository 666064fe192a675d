package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // 容器镜像里不一定有 zoneinfo

	"github.com/caarlos0/env/v11"
)

// AppConfig 聚合运行时配置，全部通过环境变量注入。
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`

	// sqlite 用于本地开发，postgres 用于部署
	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"food_order.db"`

	// 为空时使用进程内 LRU 缓存
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	OrderCacheTTL time.Duration `env:"ORDER_CACHE_TTL" envDefault:"2h"`

	// Kafka 用于多实例之间转发实时事件；为空时只在本进程内推送
	KafkaBrokers     []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaEventTopic  string   `env:"KAFKA_EVENT_TOPIC" envDefault:"food-order-events"`
	KafkaGroupPrefix string   `env:"KAFKA_GROUP_PREFIX" envDefault:"food-order-realtime"`

	// 下单接口限流
	OrderRateLimit  int           `env:"ORDER_RATE_LIMIT" envDefault:"10"`
	OrderRateWindow time.Duration `env:"ORDER_RATE_WINDOW" envDefault:"1m"`

	JWTSecret     string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	AdminUsername string        `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string        `env:"ADMIN_PASSWORD"`

	LineChannelToken  string `env:"LINE_CHANNEL_TOKEN"`
	LineChannelSecret string `env:"LINE_CHANNEL_SECRET"`
	LineAPIBase       string `env:"LINE_API_BASE" envDefault:"https://api.line.me"`

	NotifyMaxRetries int           `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
	NotifyPause      time.Duration `env:"NOTIFY_PAUSE" envDefault:"100ms"`
	NotifyTimeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`

	// 统计与营业日按店铺所在时区计算
	TimeZone string `env:"STORE_TIMEZONE" envDefault:"Asia/Bangkok"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// LoadFrom 与 Load 相同，但从给定的键值读取，便于测试。
func LoadFrom(environ map[string]string) (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}
	if strings.TrimSpace(c.DBDSN) == "" {
		return fmt.Errorf("DB_DSN must not be empty")
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("REDIS_DB must be >= 0")
	}
	if c.OrderCacheTTL <= 0 {
		return fmt.Errorf("ORDER_CACHE_TTL must be > 0")
	}
	if len(c.KafkaBrokers) > 0 {
		if c.KafkaEventTopic == "" {
			return fmt.Errorf("KAFKA_EVENT_TOPIC must not be empty")
		}
		if c.KafkaGroupPrefix == "" {
			return fmt.Errorf("KAFKA_GROUP_PREFIX must not be empty")
		}
	}
	if c.OrderRateLimit <= 0 {
		return fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	if c.OrderRateWindow < time.Second {
		return fmt.Errorf("ORDER_RATE_WINDOW must be >= 1s")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be > 0")
	}
	if c.NotifyMaxRetries < 0 {
		return fmt.Errorf("NOTIFY_MAX_RETRIES must be >= 0")
	}
	if c.NotifyPause <= 0 {
		return fmt.Errorf("NOTIFY_PAUSE must be > 0")
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("NOTIFY_TIMEOUT must be > 0")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid STORE_TIMEZONE: %w", err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// Location 店铺时区；validate 已保证可解析。
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SlogLevel 解析 LOG_LEVEL。
func (c AppConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	return lvl, nil
}
