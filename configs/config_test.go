package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PUBLISH_HOUR", "PUBLISH_TIMEZONE", "DATA_DIR", "ANTHROPIC_MODEL", "LISTEN_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	assert.Equal(t, 19, cfg.PublishHour)
	assert.Equal(t, "Europe/Moscow", cfg.PublishTimezone)
	assert.Equal(t, "claude-sonnet-4-6", cfg.AnthropicModel)
	assert.Equal(t, ":3000", cfg.ListenAddr)
	assert.Equal(t, filepath.Join("data", "queue"), cfg.QueueDir())
	assert.Equal(t, filepath.Join("data", "content_plans"), cfg.PlansDir())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PUBLISH_HOUR", "7")
	t.Setenv("DATA_DIR", "/srv/posts")
	t.Setenv("R2_ACCOUNT_ID", "acc")
	t.Setenv("R2_ACCESS_KEY", "ak")
	t.Setenv("R2_SECRET_KEY", "sk")
	t.Setenv("R2_BUCKET_NAME", "bucket")

	cfg := LoadConfig()
	assert.Equal(t, 7, cfg.PublishHour)
	assert.Equal(t, "/srv/posts/logs", cfg.LogsDir())
	assert.True(t, cfg.R2.Enabled())
}

func TestValidate(t *testing.T) {
	cfg := &Config{PublishHour: 25, PublishTimezone: "Mars/Olympus"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY, CHANNEL_ID, TAVILY_API_KEY, TELEGRAM_BOT_TOKEN")
	assert.Contains(t, err.Error(), "PUBLISH_HOUR")
	assert.Contains(t, err.Error(), "PUBLISH_TIMEZONE")

	cfg = &Config{
		TelegramBotToken: "t",
		ChannelID:        "@channel",
		AnthropicAPIKey:  "a",
		TavilyAPIKey:     "k",
		PublishHour:      19,
		PublishTimezone:  "Europe/Moscow",
	}
	assert.NoError(t, cfg.Validate())
}
