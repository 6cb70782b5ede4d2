package llm

import "time"

const (
	DefaultModel   = "claude-sonnet-4-6"
	DefaultAPIURL  = "https://api.anthropic.com"
	DefaultTimeout = 5 * time.Minute
)

type Config struct {
	APIKey  string
	APIURL  string
	Model   string
	Timeout time.Duration
}
