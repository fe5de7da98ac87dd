// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell 注入）
//  2. YAML 配置文件（{env}.yaml 覆盖 common.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	第三方 API 密钥与 Redis 密码只存在 .env 文件中（YAML 中不存储任何密钥）。
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env.dev
//   - 测试: APP_ENV=test → configs/test.yaml + .env.test
//   - 生产: APP_ENV=prod → configs/prod.yaml（凭据由进程环境注入）
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// 存储驱动
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// YAMLConfig YAML 配置文件结构
type YAMLConfig struct {
	Server       ServerConfig       `yaml:"server"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Store        StoreConfig        `yaml:"store"`
	Providers    ProvidersConfig    `yaml:"providers"`
	Log          LogConfig          `yaml:"log"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// OrchestratorConfig 编排器配置
type OrchestratorConfig struct {
	Workers         int           `yaml:"workers"`          // 同时执行的任务上限
	QueueTimeout    time.Duration `yaml:"queue_timeout"`    // 直接调用 Agent 等待空闲槽位的上限
	SyncWindow      time.Duration `yaml:"sync_window"`      // 提交接口同步等待窗口
	ProviderTimeout time.Duration `yaml:"provider_timeout"` // 单次外部调用超时
	Retention       time.Duration `yaml:"retention"`        // 任务结束后的保留时长
	ActiveTTL       time.Duration `yaml:"active_ttl"`       // 未结束任务的兜底过期时长（Redis）
	SweepInterval   time.Duration `yaml:"sweep_interval"`   // 过期清理间隔
	DefaultOrigin   string        `yaml:"default_origin"`
}

// StoreConfig 任务存储配置
type StoreConfig struct {
	Driver string       `yaml:"driver"` // memory, redis, sqlite
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	DB       int    `yaml:"db"`
	Password string `yaml:"-"`   // 只从 REDIS_PASSWORD 环境变量读取
	URL      string `yaml:"url"` // 直接指定 URL，优先于 host/port/db
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// ProvidersConfig 外部数据源配置
type ProvidersConfig struct {
	Amadeus   AmadeusConfig   `yaml:"amadeus"`
	Places    PlacesConfig    `yaml:"places"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// AmadeusConfig 航班搜索
// 注意：ClientID/ClientSecret 只从环境变量读取
type AmadeusConfig struct {
	BaseURL      string `yaml:"base_url"`
	ClientID     string `yaml:"-"`
	ClientSecret string `yaml:"-"`
}

// Enabled 凭据齐全时启用在线查询
func (c AmadeusConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// PlacesConfig 酒店与景点查询
type PlacesConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"-"` // 只从 GOOGLE_MAPS_API_KEY 读取
}

// Enabled 配置了密钥时启用在线查询
func (c PlacesConfig) Enabled() bool {
	return c.APIKey != ""
}

// RateLimitConfig 每个数据源的请求速率
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	Server         ServerConfig
	Orchestrator   OrchestratorConfig
	StoreDriver    string
	RedisURL       string
	SQLitePath     string
	Providers      ProvidersConfig
	Log            LogConfig
	ConfigFilePath string // 实际加载的 {env}.yaml 路径
}

// defaultYAMLConfig 代码内置默认值
func defaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{Port: "8080", ReadTimeout: 15 * time.Second, WriteTimeout: 30 * time.Second},
		Orchestrator: OrchestratorConfig{
			Workers:         8,
			QueueTimeout:    30 * time.Second,
			SyncWindow:      2 * time.Second,
			ProviderTimeout: 5 * time.Second,
			Retention:       time.Hour,
			ActiveTTL:       6 * time.Hour,
			SweepInterval:   time.Minute,
			DefaultOrigin:   "NYC",
		},
		Store: StoreConfig{
			Driver: StoreMemory,
			Redis:  RedisConfig{Host: "localhost", Port: 6379, DB: 0},
			SQLite: SQLiteConfig{Path: "data/trip-planner.db"},
		},
		Providers: ProvidersConfig{
			Amadeus:   AmadeusConfig{BaseURL: "https://test.api.amadeus.com"},
			Places:    PlacesConfig{BaseURL: "https://maps.googleapis.com"},
			RateLimit: RateLimitConfig{RPS: 5, Burst: 2},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}
