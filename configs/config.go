package config

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
}

// Enabled reports whether the archive mirror is configured.
func (r R2) Enabled() bool {
	return r.AccountID != "" && r.AccessKey != "" && r.SecretKey != "" && r.BucketName != ""
}

type Config struct {
	TelegramBotToken string
	ChannelID        string
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicAPIURL  string
	TavilyAPIKey     string
	TavilyAPIURL     string
	PublishHour      int
	PublishTimezone  string
	TopicConfig      string
	DataDir          string
	PromptsDir       string
	LogLevel         string
	ListenAddr       string
	RedisURI         string
	R2               R2
}

func LoadConfig() *Config {
	return &Config{
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		ChannelID:        getEnv("CHANNEL_ID", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-6"),
		AnthropicAPIURL:  getEnv("ANTHROPIC_API_URL", ""),
		TavilyAPIKey:     getEnv("TAVILY_API_KEY", ""),
		TavilyAPIURL:     getEnv("TAVILY_API_URL", ""),
		PublishHour:      getEnvInt("PUBLISH_HOUR", 19),
		PublishTimezone:  getEnv("PUBLISH_TIMEZONE", "Europe/Moscow"),
		TopicConfig:      getEnv("TOPIC_CONFIG", "topic.yaml"),
		DataDir:          getEnv("DATA_DIR", "data"),
		PromptsDir:       getEnv("PROMPTS_DIR", "prompts"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		ListenAddr:       getEnv("LISTEN_ADDR", ":3000"),
		RedisURI:         getEnv("REDIS_URI", ""),
		R2: R2{
			AccountID:  getEnv("R2_ACCOUNT_ID", ""),
			AccessKey:  getEnv("R2_ACCESS_KEY", ""),
			SecretKey:  getEnv("R2_SECRET_KEY", ""),
			BucketName: getEnv("R2_BUCKET_NAME", ""),
		},
	}
}

// Validate reports every missing required key and out of range value.
func (c *Config) Validate() error {
	var missing []string
	for key, value := range map[string]string{
		"TELEGRAM_BOT_TOKEN": c.TelegramBotToken,
		"CHANNEL_ID":         c.ChannelID,
		"ANTHROPIC_API_KEY":  c.AnthropicAPIKey,
		"TAVILY_API_KEY":     c.TavilyAPIKey,
	} {
		if value == "" {
			missing = append(missing, key)
		}
	}

	var errs []error
	if len(missing) > 0 {
		sort.Strings(missing)
		errs = append(errs, errors.New("missing required config: "+strings.Join(missing, ", ")))
	}
	if c.PublishHour < 0 || c.PublishHour > 23 {
		errs = append(errs, errors.New("PUBLISH_HOUR must be between 0 and 23"))
	}
	if _, err := time.LoadLocation(c.PublishTimezone); err != nil {
		errs = append(errs, errors.New("PUBLISH_TIMEZONE: "+err.Error()))
	}
	return errors.Join(errs...)
}

func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.PublishTimezone)
}

func (c *Config) QueueDir() string     { return filepath.Join(c.DataDir, "queue") }
func (c *Config) PublishedDir() string { return filepath.Join(c.DataDir, "published") }
func (c *Config) PlansDir() string     { return filepath.Join(c.DataDir, "content_plans") }
func (c *Config) LogsDir() string      { return filepath.Join(c.DataDir, "logs") }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
