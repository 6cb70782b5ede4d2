package topic

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/maheshrc27/postforge/internal/search"
)

// Option is a key with its human readable label.
type Option struct {
	Key   string `yaml:"key" json:"key"`
	Label string `yaml:"label" json:"label"`
}

// Config describes the channel the posts are written for and how research
// for it is done. JSON files load as well, JSON being a subset of YAML.
type Config struct {
	ChannelName        string            `yaml:"channel_name"`
	ChannelDescription string            `yaml:"channel_description"`
	ContentTypes       []Option          `yaml:"content_types"`
	Audiences          []Option          `yaml:"audiences"`
	SearchQueries      map[string]string `yaml:"search_queries"`
	SearchContext      string            `yaml:"search_context"`
	ResearchQueries    []string          `yaml:"research_queries"`
	IncludeDomains     []string          `yaml:"include_domains"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read topic config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse topic config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("topic config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.ChannelName == "" {
		missing = append(missing, "channel_name")
	}
	if c.ChannelDescription == "" {
		missing = append(missing, "channel_description")
	}
	if len(c.ContentTypes) == 0 {
		missing = append(missing, "content_types")
	}
	if len(c.Audiences) == 0 {
		missing = append(missing, "audiences")
	}
	if len(c.ResearchQueries) == 0 {
		missing = append(missing, "research_queries")
	}
	if len(missing) > 0 {
		return errors.New("missing " + strings.Join(missing, ", "))
	}
	return nil
}

// ContentTypeLabel returns the label for a content type key, or the key
// itself when it is unknown.
func (c *Config) ContentTypeLabel(key string) string {
	return labelFor(c.ContentTypes, key)
}

func (c *Config) AudienceLabel(key string) string {
	return labelFor(c.Audiences, key)
}

// SearchQueryFor builds the research query for a post: the per-type base
// query (the takeaway when the type has none), the takeaway, the extra points
// and the shared search context, cut to the search backend limit.
func (c *Config) SearchQueryFor(contentType, keyTakeaway, extra string) string {
	base, ok := c.SearchQueries[contentType]
	if !ok {
		base = keyTakeaway
	}
	parts := []string{base, keyTakeaway}
	if extra != "" {
		parts = append(parts, extra)
	}
	if c.SearchContext != "" {
		parts = append(parts, c.SearchContext)
	}
	return search.TruncateQuery(strings.Join(parts, " "))
}

func labelFor(options []Option, key string) string {
	for _, o := range options {
		if o.Key == key {
			return o.Label
		}
	}
	return key
}
