package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("文件不存在返回默认配置", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "dev", cfg.Mode)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "sqlite", cfg.Storage.Driver)
		assert.Equal(t, 300, cfg.Engine.CallbackTimeoutSeconds)
	})

	t.Run("配置文件覆盖默认值", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mailpilot.yaml")
		content := `
mode: prod
http_port: 9090
storage:
  driver: postgres
  dsn: "host=localhost dbname=mailpilot"
webhook:
  runtime_secret: s3cret
  runtime_url: http://runtime.internal:8700
rate_limit:
  rps: 50
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "prod", cfg.Mode)
		assert.Equal(t, 9090, cfg.HTTPPort)
		assert.Equal(t, "postgres", cfg.Storage.Driver)
		assert.Equal(t, "s3cret", cfg.Webhook.RuntimeSecret)
		assert.InDelta(t, 50.0, cfg.RateLimit.RPS, 0.001)
		// 未填写的字段沿用默认值
		assert.Equal(t, 10, cfg.Storage.MaxOpenConns)
		assert.Equal(t, 20, cfg.RateLimit.Burst)
	})

	t.Run("非法YAML报错", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.yaml")
		require.NoError(t, os.WriteFile(path, []byte("mode: [unclosed"), 0o644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("默认配置合法", func(t *testing.T) {
		assert.NoError(t, Validate(Default()))
	})

	cases := []struct {
		name   string
		mutate func(cfg *Config)
	}{
		{"未知mode", func(cfg *Config) { cfg.Mode = "staging" }},
		{"端口越界", func(cfg *Config) { cfg.HTTPPort = 70000 }},
		{"未知数据库类型", func(cfg *Config) { cfg.Storage.Driver = "oracle" }},
		{"DSN为空", func(cfg *Config) { cfg.Storage.DSN = "" }},
		{"回调超时越界", func(cfg *Config) { cfg.Engine.CallbackTimeoutSeconds = 7200 }},
		{"runtime_url缺少密钥", func(cfg *Config) { cfg.Webhook.RuntimeURL = "http://runtime.internal" }},
		{"限流速率为负", func(cfg *Config) { cfg.RateLimit.RPS = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	t.Run("nil配置报错", func(t *testing.T) {
		assert.Error(t, Validate(nil))
	})
}
