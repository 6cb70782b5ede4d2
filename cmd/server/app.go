package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	config "github.com/maheshrc27/postforge/configs"
	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/logging"
	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/internal/pipeline"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/internal/topic"
)

// application holds everything constructed from the environment.
type application struct {
	cfg      *config.Config
	topic    *topic.Config
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	planner  service.PlannerService
	publish  service.PublishService
	autopost service.AutopostService
}

func buildApplication(ctx context.Context) (*application, error) {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := logging.NewLogger(cfg.LogLevel)

	topicCfg, err := topic.Load(cfg.TopicConfig)
	if err != nil {
		return nil, err
	}

	gen, err := llm.NewAnthropicClient(llm.Config{
		APIKey: cfg.AnthropicAPIKey,
		APIURL: cfg.AnthropicAPIURL,
		Model:  cfg.AnthropicModel,
	})
	if err != nil {
		return nil, err
	}
	searcher, err := search.NewTavilyClient(cfg.TavilyAPIKey, cfg.TavilyAPIURL)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	store := repository.NewJSONStore()
	posts := repository.NewPostRepository(store, cfg.QueueDir(), cfg.PublishedDir())
	plans := repository.NewPlanRepository(store, cfg.PlansDir())

	plannerPrompt, err := pipeline.LoadPrompt(cfg.PromptsDir, service.PlannerPromptFile)
	if err != nil {
		return nil, err
	}
	planner := service.NewPlannerService(gen, searcher, plans, topicCfg, plannerPrompt, logger, m)

	agents, err := pipeline.LoadAgents(gen, searcher, topicCfg, cfg.PromptsDir)
	if err != nil {
		return nil, err
	}
	orchestrator := pipeline.NewOrchestrator(agents, posts, cfg.LogsDir(), logger, pipeline.WithMetrics(m))

	var mirror service.ArchiveMirror
	if cfg.R2.Enabled() {
		r2, err := service.NewR2Service(ctx, cfg.R2)
		if err != nil {
			return nil, fmt.Errorf("r2 mirror: %w", err)
		}
		mirror = r2
	}

	delivery := service.NewTelegramService(cfg.TelegramBotToken, cfg.ChannelID, "")

	return &application{
		cfg:      cfg,
		topic:    topicCfg,
		logger:   logger,
		metrics:  m,
		planner:  planner,
		publish:  service.NewPublishService(posts, delivery, planner, mirror, logger, m),
		autopost: service.NewAutopostService(orchestrator, planner, logger),
	}, nil
}
