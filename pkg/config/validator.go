package config

import "fmt"

// Validate 校验配置合法性（对外导出）
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("配置不能为空")
	}

	if cfg.Mode != "" && cfg.Mode != "dev" && cfg.Mode != "prod" {
		return fmt.Errorf("mode必须是dev/prod之一")
	}
	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		return fmt.Errorf("http_port必须在1-65535之间")
	}

	validDrivers := map[string]bool{
		"sqlite":   true,
		"postgres": true,
		"mysql":    true,
	}
	if !validDrivers[cfg.Storage.Driver] {
		return fmt.Errorf("storage.driver必须是sqlite/postgres/mysql之一")
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn不能为空")
	}
	if cfg.Storage.MaxOpenConns <= 0 {
		return fmt.Errorf("storage.max_open_conns必须大于0")
	}
	if cfg.Storage.MaxIdleConns < 0 {
		return fmt.Errorf("storage.max_idle_conns不能为负数")
	}

	if cfg.Engine.CallbackTimeoutSeconds < 0 || cfg.Engine.CallbackTimeoutSeconds > 3600 {
		return fmt.Errorf("engine.callback_timeout_seconds必须在0-3600之间")
	}

	if cfg.Webhook.RuntimeURL != "" && cfg.Webhook.RuntimeSecret == "" {
		return fmt.Errorf("配置runtime_url时runtime_secret不能为空")
	}

	if cfg.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps不能为负数")
	}
	if cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst不能为负数")
	}

	return nil
}
