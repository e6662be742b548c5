// Package config 服务配置的定义、加载与校验
package config

import "github.com/stevelan1995/mailpilot/pkg/core/classifier"

// Config 服务配置（对外导出）
type Config struct {
	Mode     string `yaml:"mode"` // dev或prod
	HTTPPort int    `yaml:"http_port"`

	Storage struct {
		Driver       string `yaml:"driver"` // sqlite/postgres/mysql
		DSN          string `yaml:"dsn"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		MaxIdleConns int    `yaml:"max_idle_conns"`
	} `yaml:"storage"`

	Engine struct {
		CallbackTimeoutSeconds int `yaml:"callback_timeout_seconds"` // 外部动作回调超时
	} `yaml:"engine"`

	Webhook struct {
		RuntimeSecret string `yaml:"runtime_secret"` // 运行时回调的HMAC密钥
		MailSecret    string `yaml:"mail_secret"`    // 邮件提供商推送的HMAC密钥
		RuntimeURL    string `yaml:"runtime_url"`    // 外部运行时的转发地址
	} `yaml:"webhook"`

	SMTP struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		From     string `yaml:"from"`
	} `yaml:"smtp"`

	RateLimit struct {
		RPS   float64 `yaml:"rps"`   // 入站接口每秒请求数
		Burst int     `yaml:"burst"` // 突发容量
	} `yaml:"rate_limit"`

	Classifier classifier.Config `yaml:"classifier"`
}
