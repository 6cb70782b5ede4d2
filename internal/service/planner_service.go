package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/pipeline"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/topic"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const (
	planSearchResults = 3
	planMaxSources    = 15
	planSourceRunes   = 300
	planMaxTokens     = 4096
	planTemperature   = 0.7
	planDays          = 7
	PlannerPromptFile = "content_planner.md"
)

var ErrEmptyPlan = errors.New("generated content plan has no days")

// keys the planner owns; whatever the model puts there is dropped
var plannerOwnedKeys = []string{"id", "status", "queued_at", "used_at"}

// PlannerService owns the weekly content plan and the lifecycle of its
// topics: pending, queued while a run is in flight, used once published.
// A failed or cancelled run moves its topic from queued back to pending.
type PlannerService interface {
	GenerateWeeklyPlan(ctx context.Context) (*models.ContentPlan, error)
	RefinePlan(ctx context.Context, current *models.ContentPlan, feedback string) (*models.ContentPlan, error)
	GetLatestPlan(ctx context.Context) (*models.ContentPlan, error)
	GetNextTopic(ctx context.Context) (*models.PlannedTopic, error)
	MarkTopicPending(ctx context.Context, topicID int, planFile string) error
	MarkTopicQueued(ctx context.Context, topicID int, planFile string) error
	MarkTopicUsed(ctx context.Context, topicID int, planFile string) error
}

type plannerService struct {
	llm      llm.Generator
	searcher search.Searcher
	plans    repository.PlanRepository
	topic    *topic.Config
	prompt   string
	logger   logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewPlannerService(
	gen llm.Generator,
	searcher search.Searcher,
	plans repository.PlanRepository,
	cfg *topic.Config,
	prompt string,
	logger logrus.FieldLogger,
	m *metrics.Metrics) PlannerService {
	return &plannerService{
		llm:      gen,
		searcher: searcher,
		plans:    plans,
		topic:    cfg,
		prompt:   prompt,
		logger:   logger.WithField("component", "planner"),
		metrics:  m,
		now:      time.Now,
	}
}

// GenerateWeeklyPlan researches current news for every configured research
// query and asks the model for a fresh seven day plan.
func (s *plannerService) GenerateWeeklyPlan(ctx context.Context) (*models.ContentPlan, error) {
	sources, err := s.research(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Current news and trends: %s\n\n%s\n# Task\n\n", s.topic.ChannelName, sources)
	b.WriteString("Using these sources, build a content plan for 7 days (Monday to Sunday).\n")
	fmt.Fprintf(&b, "Channel: %s\n", s.topic.ChannelDescription)
	b.WriteString("One post per day. Alternate content types. Use concrete data from the sources.\n")

	plan, err := s.generatePlan(ctx, b.String())
	if err != nil {
		return nil, err
	}

	now := s.now()
	plan.CreatedAt = &now
	plan.Status = models.PlanStatusActive
	for i := range plan.Days {
		plan.Days[i].ID = i
		plan.Days[i].Status = models.TopicPending
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"file": plan.File, "days": len(plan.Days)}).Info("plan_generated")
	return plan, nil
}

// RefinePlan revises current with editor feedback and fresh sources and
// writes the result over the same plan file. Entries that were queued or
// used keep that status and its timestamp, matched by id.
func (s *plannerService) RefinePlan(ctx context.Context, current *models.ContentPlan, feedback string) (*models.ContentPlan, error) {
	sources, err := s.research(ctx)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	b.WriteString("# Current content plan\n\n")
	for _, d := range current.Days {
		fmt.Fprintf(&b, "**%s**: %s: %s\n", d.Day, d.TypeLabel, d.Theme)
	}
	fmt.Fprintf(&b, "\n# Editor feedback\n\n%s\n\n# Fresh sources to replace weak topics\n\n%s\n# Task\n\n", feedback, sources)
	b.WriteString("Revise the content plan using the feedback and the fresh sources.\n")
	b.WriteString("Keep the topics that are good. Replace the weak ones with stronger ones from the new sources.\n")
	fmt.Fprintf(&b, "Channel: %s\n", s.topic.ChannelDescription)
	b.WriteString("Return the updated JSON in the same format.\n")

	plan, err := s.generatePlan(ctx, b.String())
	if err != nil {
		return nil, err
	}

	preserved := make(map[int]models.TopicEntry)
	for _, d := range current.Days {
		if d.Status == models.TopicQueued || d.Status == models.TopicUsed {
			preserved[d.ID] = d
		}
	}
	for i := range plan.Days {
		day := &plan.Days[i]
		day.ID = i
		old, ok := preserved[i]
		if !ok {
			day.Status = models.TopicPending
			continue
		}
		day.Status = old.Status
		day.QueuedAt = old.QueuedAt
		day.UsedAt = old.UsedAt
	}

	now := s.now()
	plan.CreatedAt = current.CreatedAt
	plan.RefinedAt = &now
	plan.Status = models.PlanStatusActive
	plan.File = current.File

	if err := s.plans.Save(ctx, plan); err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"file": plan.File, "preserved": len(preserved)}).Info("plan_refined")
	return plan, nil
}

func (s *plannerService) GetLatestPlan(ctx context.Context) (*models.ContentPlan, error) {
	return s.plans.Latest(ctx)
}

// GetNextTopic returns the first pending entry of the latest plan, or nil
// when there is no plan or nothing is pending.
func (s *plannerService) GetNextTopic(ctx context.Context) (*models.PlannedTopic, error) {
	plan, err := s.plans.Latest(ctx)
	if err != nil || plan == nil {
		return nil, err
	}
	for _, d := range plan.Days {
		if d.Status == models.TopicPending {
			return &models.PlannedTopic{TopicEntry: d, PlanFile: plan.File}, nil
		}
	}
	return nil, nil
}

func (s *plannerService) MarkTopicPending(ctx context.Context, topicID int, planFile string) error {
	return s.markTopic(ctx, topicID, planFile, models.TopicPending)
}

func (s *plannerService) MarkTopicQueued(ctx context.Context, topicID int, planFile string) error {
	return s.markTopic(ctx, topicID, planFile, models.TopicQueued)
}

func (s *plannerService) MarkTopicUsed(ctx context.Context, topicID int, planFile string) error {
	return s.markTopic(ctx, topicID, planFile, models.TopicUsed)
}

// markTopic changes one entry's status and the timestamp that goes with it.
// A missing or stale plan reference falls back to the latest plan; with no
// plan at all the call does nothing.
func (s *plannerService) markTopic(ctx context.Context, topicID int, planFile string, status models.TopicStatus) error {
	log := s.logger.WithFields(logrus.Fields{"topic_id": topicID, "status": status})

	file, err := s.resolvePlanFile(ctx, planFile)
	if err != nil {
		return err
	}
	if file == "" {
		log.Warn("plan_missing")
		return nil
	}

	plan, err := s.plans.Get(ctx, file)
	if err != nil {
		return err
	}

	found := false
	for i := range plan.Days {
		day := &plan.Days[i]
		if day.ID != topicID {
			continue
		}
		found = true
		day.Status = status
		now := s.now()
		switch status {
		case models.TopicPending:
			day.QueuedAt = nil
		case models.TopicQueued:
			day.QueuedAt = &now
		case models.TopicUsed:
			day.UsedAt = &now
		}
		break
	}
	if !found {
		log.WithField("file", file).Warn("plan_topic_missing")
		return nil
	}

	if err := s.plans.Update(ctx, plan); err != nil {
		return err
	}
	s.metrics.TopicTransition(string(status))
	log.WithField("file", file).Info("plan_topic_marked")
	return nil
}

func (s *plannerService) resolvePlanFile(ctx context.Context, planFile string) (string, error) {
	if planFile != "" && s.plans.Exists(planFile) {
		return planFile, nil
	}
	return s.plans.LatestFile(ctx)
}

// research runs every research query, skipping the ones that fail, and
// formats the de-duplicated top results for the prompt.
func (s *plannerService) research(ctx context.Context) (string, error) {
	var all []search.Result
	for _, query := range s.topic.ResearchQueries {
		results, err := s.searcher.Search(ctx, query, search.Options{
			MaxResults:  planSearchResults,
			SearchDepth: search.DepthAdvanced,
			Topic:       search.TopicNews,
			TimeRange:   search.RangeWeek,
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			s.logger.WithError(err).WithField("query", query).Warn("plan_search_failed")
			continue
		}
		all = append(all, results...)
	}

	unique := search.DedupByURL(all)
	if len(unique) > planMaxSources {
		unique = unique[:planMaxSources]
	}

	var b strings.Builder
	for i, r := range unique {
		fmt.Fprintf(&b, "### Source %d\n**URL:** %s\n**Title:** %s\n**Content:** %s\n\n",
			i+1, r.URL, r.Title, utils.Truncate(r.Content, planSourceRunes))
	}
	return b.String(), nil
}

// generatePlan asks the model for a plan and decodes it. Keys the planner
// owns are stripped from the model output before decoding.
func (s *plannerService) generatePlan(ctx context.Context, user string) (*models.ContentPlan, error) {
	response, err := s.llm.Generate(ctx, llm.Request{
		System:      s.prompt,
		User:        user,
		MaxTokens:   planMaxTokens,
		Temperature: planTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("plan generation: %w", err)
	}

	raw, err := pipeline.ExtractJSON(response, pipeline.PolicyFatal)
	if err != nil {
		return nil, fmt.Errorf("parse content plan: %w", err)
	}

	days, _ := raw["days"].([]any)
	for _, d := range days {
		if day, ok := d.(map[string]any); ok {
			for _, key := range plannerOwnedKeys {
				delete(day, key)
			}
		}
	}

	data, err := json.Marshal(map[string]any{"days": days})
	if err != nil {
		return nil, fmt.Errorf("encode content plan: %w", err)
	}
	var plan models.ContentPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("decode content plan: %w", err)
	}
	if len(plan.Days) == 0 {
		return nil, ErrEmptyPlan
	}
	// one week; extra days from the model are dropped so ids stay 0..6
	if len(plan.Days) > planDays {
		s.logger.WithField("days", len(plan.Days)).Warn("plan_truncated")
		plan.Days = plan.Days[:planDays]
	}

	for i := range plan.Days {
		if plan.Days[i].TypeLabel == "" {
			plan.Days[i].TypeLabel = s.topic.ContentTypeLabel(plan.Days[i].Type)
		}
	}
	return &plan, nil
}

// FormatPlan renders a plan as readable text, one line per day.
func FormatPlan(plan *models.ContentPlan) string {
	var b strings.Builder
	for _, d := range plan.Days {
		fmt.Fprintf(&b, "%d. %s [%s] %s: %s", d.ID, d.Day, d.Status, d.TypeLabel, d.Theme)
		if d.Angle != "" {
			fmt.Fprintf(&b, " (%s)", d.Angle)
		}
		b.WriteString("\n")
	}
	return b.String()
}
