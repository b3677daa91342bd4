// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	API        APIConfig        `yaml:"api"`
	TabuSearch TabuSearchConfig `yaml:"tabu_search"`
	Controller ControllerConfig `yaml:"controller"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// TabuSearchConfig 内层禁忌搜索默认参数，对应 solver.Options 中与
// tabusearch.Option 相关的部分
type TabuSearchConfig struct {
	InitialTabuTenure            int     `yaml:"initial_tabu_tenure"`
	InnerIterationMax             int     `yaml:"inner_iteration_max"`
	ChainCapacity                 int     `yaml:"chain_capacity"`
	ChainOverlapThreshold         float64 `yaml:"chain_overlap_threshold"`
	InitialModificationFixedRate  float64 `yaml:"initial_modification_fixed_rate"`
	InitialModificationWidth      int     `yaml:"initial_modification_width"`
}

// ControllerConfig 外层控制回路默认参数，对应 solver.Options 中与
// controller.Option 相关的部分
type ControllerConfig struct {
	OuterIterationMax         int           `yaml:"outer_iteration_max"`
	DefaultTimeout            time.Duration `yaml:"default_timeout"`
	InitialPenaltyCoefficient float64       `yaml:"initial_penalty_coefficient"`
	TighteningRate            float64       `yaml:"tightening_rate"`
	RelaxingRate              float64       `yaml:"relaxing_rate"`
	PenaltyBalance            float64       `yaml:"penalty_balance"`
	IterationIncreaseRate     float64       `yaml:"iteration_increase_rate"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "tabumip"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "tabumip"),
			User:            getEnv("DB_USER", "tabumip"),
			Password:        getEnv("DB_PASSWORD", "tabumip123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
		},
		TabuSearch: TabuSearchConfig{
			InitialTabuTenure:            getEnvInt("TABU_INITIAL_TENURE", 10),
			InnerIterationMax:            getEnvInt("TABU_INNER_ITERATION_MAX", 200),
			ChainCapacity:                getEnvInt("TABU_CHAIN_CAPACITY", 100),
			ChainOverlapThreshold:        getEnvFloat("TABU_CHAIN_OVERLAP_THRESHOLD", 0.2),
			InitialModificationFixedRate: getEnvFloat("TABU_INITIAL_MODIFICATION_RATE", 0.1),
			InitialModificationWidth:     getEnvInt("TABU_INITIAL_MODIFICATION_WIDTH", 2),
		},
		Controller: ControllerConfig{
			OuterIterationMax:         getEnvInt("CONTROLLER_OUTER_ITERATION_MAX", 20),
			DefaultTimeout:            getEnvDuration("CONTROLLER_TIMEOUT", 120*time.Second),
			InitialPenaltyCoefficient: getEnvFloat("CONTROLLER_INITIAL_PENALTY", 1e6),
			TighteningRate:            getEnvFloat("CONTROLLER_TIGHTENING_RATE", 1.0),
			RelaxingRate:              getEnvFloat("CONTROLLER_RELAXING_RATE", 0.5),
			PenaltyBalance:            getEnvFloat("CONTROLLER_PENALTY_BALANCE", 0.5),
			IterationIncreaseRate:     getEnvFloat("CONTROLLER_ITERATION_INCREASE_RATE", 1.0),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
