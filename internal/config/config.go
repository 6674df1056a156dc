package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	Log    LogConfig
	Store  StoreConfig
	AI     AIConfig
	Image  ImageConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	image, err := loadImageConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log:    loadLogConfig(),
		Store:  store,
		AI:     ai,
		Image:  image,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level  string
	Pretty bool
}

func loadLogConfig() LogConfig {
	pretty, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv("LOG_PRETTY")))
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Pretty: pretty,
	}
}

// StoreConfig 描述用户档案存储配置。历史上限与生成窗口是可调参数，
// 不是硬编码不变量。
type StoreConfig struct {
	Backend       string // file | sqlite
	FilePath      string
	SqlitePath    string
	MaxHistory    int
	ContextWindow int
}

func loadStoreConfig() (StoreConfig, error) {
	maxHistory := 50
	if override, err := parseOptionalIntEnv("COMPANION_MAX_HISTORY"); err != nil {
		return StoreConfig{}, err
	} else if override != nil && *override > 0 {
		maxHistory = *override
	}

	window := 10
	if override, err := parseOptionalIntEnv("COMPANION_CONTEXT_WINDOW"); err != nil {
		return StoreConfig{}, err
	} else if override != nil && *override > 0 {
		window = *override
	}

	backend := getEnvOrDefault("COMPANION_STORE_BACKEND", "file")
	switch backend {
	case "file", "sqlite":
	default:
		return StoreConfig{}, fmt.Errorf("invalid COMPANION_STORE_BACKEND value: %q", backend)
	}

	return StoreConfig{
		Backend:       backend,
		FilePath:      getEnvOrDefault("COMPANION_MEMORY_PATH", "./data/memory.json"),
		SqlitePath:    getEnvOrDefault("COMPANION_SQLITE_PATH", "./data/memory.db"),
		MaxHistory:    maxHistory,
		ContextWindow: window,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds := 30
	if override, err := parseOptionalIntEnv("ARK_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("ARK_MODEL")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// ImageConfig 描述场景配图服务的配置。Mode 为 static 时仅使用预制图库。
type ImageConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Mode     string // ai | static
	CacheDir string
	Timeout  time.Duration
}

// Enabled 表示 AI 配图是否可用。
func (c ImageConfig) Enabled() bool {
	return c.Mode == "ai" && c.APIKey != ""
}

func loadImageConfig() (ImageConfig, error) {
	mode := getEnvOrDefault("XIAOYUE_PHOTO_MODE", "static")
	switch mode {
	case "ai", "static":
	default:
		return ImageConfig{}, fmt.Errorf("invalid XIAOYUE_PHOTO_MODE value: %q", mode)
	}

	timeoutSeconds := 60
	if override, err := parseOptionalIntEnv("COGVIEW_TIMEOUT"); err != nil {
		return ImageConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return ImageConfig{
		APIKey:   strings.TrimSpace(os.Getenv("COGVIEW_API_KEY")),
		BaseURL:  getEnvOrDefault("COGVIEW_BASE_URL", "https://open.bigmodel.cn/api/paas/v4/images/generations"),
		Model:    getEnvOrDefault("COGVIEW_MODEL", "cogview-3-flash"),
		Mode:     mode,
		CacheDir: getEnvOrDefault("COMPANION_IMAGE_DIR", "./data/images"),
		Timeout:  time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
