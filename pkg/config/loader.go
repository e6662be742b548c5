package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// Default 返回默认配置（对外导出）
func Default() *Config {
	cfg := &Config{
		Mode:     "dev",
		HTTPPort: 8080,
	}
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.DSN = "mailpilot.db"
	cfg.Storage.MaxOpenConns = 10
	cfg.Storage.MaxIdleConns = 5
	cfg.Engine.CallbackTimeoutSeconds = 300
	cfg.RateLimit.RPS = 10
	cfg.RateLimit.Burst = 20
	return cfg
}

// Load 加载配置文件
// 文件不存在时返回默认配置；未填写的字段用默认值补齐
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), nil
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
