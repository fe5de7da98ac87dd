package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
// 1. 加载 .env（敏感信息 + APP_ENV）
// 2. 加载 configs/common.yaml 与 configs/{env}.yaml
// 3. 环境变量覆盖并构建最终配置
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, loadedFrom, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}

	yamlCfg.Store.Redis.Password = os.Getenv("REDIS_PASSWORD")
	yamlCfg.Providers.Amadeus.ClientID = os.Getenv("AMADEUS_CLIENT_ID")
	yamlCfg.Providers.Amadeus.ClientSecret = os.Getenv("AMADEUS_CLIENT_SECRET")
	yamlCfg.Providers.Places.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")

	cfg := &Config{
		Env:            env,
		Server:         yamlCfg.Server,
		Orchestrator:   yamlCfg.Orchestrator,
		StoreDriver:    normalizeDriver(getEnv("STORE_DRIVER", yamlCfg.Store.Driver)),
		RedisURL:       getEnv("REDIS_URL", buildRedisURL(yamlCfg.Store.Redis)),
		SQLitePath:     getEnv("SQLITE_PATH", yamlCfg.Store.SQLite.Path),
		Providers:      yamlCfg.Providers,
		Log:            yamlCfg.Log,
		ConfigFilePath: loadedFrom,
	}

	cfg.Server.Port = getEnv("API_PORT", cfg.Server.Port)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Orchestrator.Workers = getEnvInt("WORKERS", cfg.Orchestrator.Workers)
	cfg.Orchestrator.SyncWindow = getEnvDuration("SYNC_WINDOW", cfg.Orchestrator.SyncWindow)
	cfg.Orchestrator.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", cfg.Orchestrator.ProviderTimeout)

	cfg.validate()
	return cfg, nil
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
// 文件缺失不是错误；文件存在但格式错误时返回错误
func loadYAMLConfig(env Environment) (*YAMLConfig, string, error) {
	cfg := defaultYAMLConfig()

	if path := findFile("common.yaml"); path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, "", err
		}
	}

	loadedFrom := findFile(fmt.Sprintf("%s.yaml", env))
	if loadedFrom != "" {
		if err := decodeFile(loadedFrom, cfg); err != nil {
			return nil, "", err
		}
	}
	return cfg, loadedFrom, nil
}

func decodeFile(path string, cfg *YAMLConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Port: %s, Store: %s, Redis: %s, Workers: %d, SyncWindow: %s, Amadeus: %s, Places: %s}",
		c.Env, c.Server.Port, c.StoreDriver, maskPassword(c.RedisURL),
		c.Orchestrator.Workers, c.Orchestrator.SyncWindow,
		maskSecret(c.Providers.Amadeus.ClientID), maskSecret(c.Providers.Places.APIKey))
}

// validate 验证并填充默认值
func (c *Config) validate() {
	def := defaultYAMLConfig()
	if c.Server.Port == "" {
		c.Server.Port = def.Server.Port
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = def.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = def.Server.WriteTimeout
	}

	o := &c.Orchestrator
	if o.Workers <= 0 {
		o.Workers = def.Orchestrator.Workers
	}
	if o.QueueTimeout <= 0 {
		o.QueueTimeout = def.Orchestrator.QueueTimeout
	}
	if o.SyncWindow < 0 {
		o.SyncWindow = 0
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = def.Orchestrator.ProviderTimeout
	}
	if o.Retention <= 0 {
		o.Retention = def.Orchestrator.Retention
	}
	if o.ActiveTTL < o.Retention {
		o.ActiveTTL = def.Orchestrator.ActiveTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = def.Orchestrator.SweepInterval
	}
	if o.DefaultOrigin == "" {
		o.DefaultOrigin = def.Orchestrator.DefaultOrigin
	}

	if c.SQLitePath == "" {
		c.SQLitePath = def.Store.SQLite.Path
	}
	if c.Providers.RateLimit.RPS <= 0 {
		c.Providers.RateLimit.RPS = def.Providers.RateLimit.RPS
	}
	if c.Providers.RateLimit.Burst <= 0 {
		c.Providers.RateLimit.Burst = def.Providers.RateLimit.Burst
	}
	if c.Providers.Amadeus.BaseURL == "" {
		c.Providers.Amadeus.BaseURL = def.Providers.Amadeus.BaseURL
	}
	if c.Providers.Places.BaseURL == "" {
		c.Providers.Places.BaseURL = def.Providers.Places.BaseURL
	}
}
