package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Realtime RealtimeConfig
	Webhook  WebhookConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	realtime, err := loadRealtimeConfig()
	if err != nil {
		return nil, err
	}

	webhook, err := loadWebhookConfig()
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Realtime: realtime,
		Webhook:  webhook,
		Log:      logCfg,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr      string
	StaticDir string
	// SessionRetention 内存中保留的已结束会话数量，0 表示默认值
	SessionRetention int
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	staticDir := getEnvOrDefault("STATIC_DIR", "public")

	retention, err := parseOptionalIntEnv("SESSION_RETENTION")
	if err != nil {
		return ServerConfig{}, err
	}
	cfg := ServerConfig{StaticDir: staticDir}
	if retention != nil {
		if *retention < 0 {
			return ServerConfig{}, fmt.Errorf("invalid SESSION_RETENTION value %d: must not be negative", *retention)
		}
		cfg.SessionRetention = *retention
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
		return cfg, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	cfg.Addr = ":" + port
	return cfg, nil
}

// RealtimeConfig 描述上游实时语音模型相关配置。
type RealtimeConfig struct {
	APIKey         string
	BaseURL        string
	StreamURL      string
	Model          string
	ConnectTimeout time.Duration
	ProfilesPath   string
}

// Enabled 表示是否提供了长期密钥。
func (c RealtimeConfig) Enabled() bool {
	return c.APIKey != ""
}

const (
	DefaultBaseURL        = "https://api.openai.com/v1"
	DefaultStreamURL      = "wss://api.openai.com/v1/realtime"
	DefaultModel          = "gpt-4o-realtime-preview-2024-12-17"
	DefaultConnectTimeout = 15 * time.Second
	DefaultWebhookTimeout = 20 * time.Second
)

func loadRealtimeConfig() (RealtimeConfig, error) {
	timeout, err := parseOptionalDurationEnv("REALTIME_CONNECT_TIMEOUT")
	if err != nil {
		return RealtimeConfig{}, err
	}
	connectTimeout := DefaultConnectTimeout
	if timeout != nil {
		if *timeout <= 0 {
			return RealtimeConfig{}, fmt.Errorf("invalid REALTIME_CONNECT_TIMEOUT value %q: must be positive", os.Getenv("REALTIME_CONNECT_TIMEOUT"))
		}
		connectTimeout = *timeout
	}

	return RealtimeConfig{
		APIKey:         strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:        strings.TrimRight(getEnvOrDefault("OPENAI_BASE_URL", DefaultBaseURL), "/"),
		StreamURL:      getEnvOrDefault("OPENAI_REALTIME_URL", DefaultStreamURL),
		Model:          getEnvOrDefault("OPENAI_REALTIME_MODEL", DefaultModel),
		ConnectTimeout: connectTimeout,
		ProfilesPath:   strings.TrimSpace(os.Getenv("AGENT_PROFILES_PATH")),
	}, nil
}

// WebhookConfig 描述数据采集 webhook 配置
type WebhookConfig struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Enabled 表示是否配置了 webhook 地址。
func (c WebhookConfig) Enabled() bool {
	return c.URL != ""
}

func loadWebhookConfig() (WebhookConfig, error) {
	timeout, err := parseOptionalDurationEnv("WEBHOOK_TIMEOUT")
	if err != nil {
		return WebhookConfig{}, err
	}
	webhookTimeout := DefaultWebhookTimeout
	if timeout != nil && *timeout > 0 {
		webhookTimeout = *timeout
	}

	return WebhookConfig{
		URL:     strings.TrimSpace(os.Getenv("N8N_WEBHOOK_URL")),
		Secret:  strings.TrimSpace(os.Getenv("N8N_WEBHOOK_SECRET")),
		Timeout: webhookTimeout,
	}, nil
}

// LogConfig 日志输出配置
type LogConfig struct {
	Level string
	JSON  bool
}

func loadLogConfig() (LogConfig, error) {
	jsonOutput, err := parseBoolEnv("LOG_JSON", false)
	if err != nil {
		return LogConfig{}, err
	}

	return LogConfig{
		Level: strings.ToLower(getEnvOrDefault("LOG_LEVEL", "info")),
		JSON:  jsonOutput,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return &val, nil
}

// parseOptionalDurationEnv accepts Go durations ("15s") or a bare number of seconds.
func parseOptionalDurationEnv(key string) (*time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		d := time.Duration(seconds) * time.Second
		return &d, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &d, nil
}
