package models

import "time"

type TopicStatus string

const (
	TopicPending TopicStatus = "pending"
	TopicQueued  TopicStatus = "queued"
	TopicUsed    TopicStatus = "used"
)

const PlanStatusActive = "active"

// ContentPlan is a weekly topic plan. File is the path of the plan document
// on disk and is not part of the stored JSON.
type ContentPlan struct {
	Days      []TopicEntry `json:"days"`
	CreatedAt *time.Time   `json:"created_at,omitempty"`
	RefinedAt *time.Time   `json:"refined_at,omitempty"`
	Status    string       `json:"status"`
	File      string       `json:"-"`
}

// OpenTopics counts entries that are not used yet. A nil plan has none.
func (p *ContentPlan) OpenTopics() int {
	if p == nil {
		return 0
	}
	open := 0
	for _, d := range p.Days {
		if d.Status != TopicUsed {
			open++
		}
	}
	return open
}

// TopicEntry is one day of a plan. ID is stable across refinements and is the
// key used to carry queued/used state from one revision to the next.
type TopicEntry struct {
	ID        int         `json:"id"`
	Day       string      `json:"day"`
	Type      string      `json:"type"`
	TypeLabel string      `json:"type_label"`
	Theme     string      `json:"theme"`
	Angle     string      `json:"angle"`
	Audience  string      `json:"audience,omitempty"`
	Status    TopicStatus `json:"status"`
	QueuedAt  *time.Time  `json:"queued_at,omitempty"`
	UsedAt    *time.Time  `json:"used_at,omitempty"`
}

// PlannedTopic is a topic handed out by the planner together with the plan
// file it came from.
type PlannedTopic struct {
	TopicEntry
	PlanFile string `json:"plan_file"`
}

// Brief turns a planned topic into pipeline input.
func (t PlannedTopic) Brief() Brief {
	id := t.ID
	audience := t.Audience
	if audience == "" {
		audience = "all"
	}
	return Brief{
		TopicAngle:  t.Type,
		Audience:    audience,
		KeyTakeaway: t.Theme,
		ExtraPoints: t.Angle,
		PlanTopicID: &id,
		PlanFile:    t.PlanFile,
	}
}
