package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTopics(t *testing.T) {
	var none *ContentPlan
	assert.Zero(t, none.OpenTopics())

	plan := &ContentPlan{Days: []TopicEntry{
		{ID: 0, Status: TopicUsed},
		{ID: 1, Status: TopicQueued},
		{ID: 2, Status: TopicPending},
	}}
	assert.Equal(t, 2, plan.OpenTopics())
}

func TestPlannedTopicBrief(t *testing.T) {
	topic := PlannedTopic{
		TopicEntry: TopicEntry{ID: 3, Type: "case_study", Theme: "NPC dialogue", Angle: "cost per line"},
		PlanFile:   "data/content_plans/plan_20260302_090000.json",
	}

	brief := topic.Brief()
	assert.Equal(t, "case_study", brief.TopicAngle)
	assert.Equal(t, "all", brief.Audience)
	assert.Equal(t, "NPC dialogue", brief.KeyTakeaway)
	assert.Equal(t, "cost per line", brief.ExtraPoints)
	require.NotNil(t, brief.PlanTopicID)
	assert.Equal(t, 3, *brief.PlanTopicID)
	assert.Equal(t, topic.PlanFile, brief.PlanFile)

	topic.Audience = "indie"
	assert.Equal(t, "indie", topic.Brief().Audience)
}

func TestCritique(t *testing.T) {
	ok := Critique{CritiqueKeyName: "Fact Checker", "score": 8.0}
	assert.Equal(t, "Fact Checker", ok.CriticName())
	assert.False(t, ok.Degraded())

	degraded := Critique{CritiqueKeyError: "Failed to parse JSON", CritiqueKeyRawResponse: "prose"}
	assert.True(t, degraded.Degraded())
	assert.Empty(t, degraded.CriticName())
}
