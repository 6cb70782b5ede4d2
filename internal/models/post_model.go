package models

import "time"

type PostRecord struct {
	FinalPost   string     `json:"final_post"`
	Draft       string     `json:"draft"`
	Research    Research   `json:"research"`
	Critiques   []Critique `json:"critiques"`
	UserAnswers Brief      `json:"user_answers"`
	Status      string     `json:"status"`                 // queued, published
	QueuedAt    *time.Time `json:"queued_at,omitempty"`    // set by the queue
	PublishedAt *time.Time `json:"published_at,omitempty"` // set on publish
	MessageID   *int64     `json:"message_id,omitempty"`   // channel message, once delivered
	EditedAt    *time.Time `json:"edited_at,omitempty"`
}

// Brief is the user input a pipeline run starts from. Runs started from a
// content plan carry the topic reference so the publish step can close it.
type Brief struct {
	TopicAngle  string `json:"topic_angle"`
	Audience    string `json:"audience"`
	KeyTakeaway string `json:"key_takeaway"`
	ExtraPoints string `json:"extra_points,omitempty"`
	PlanTopicID *int   `json:"plan_topic_id,omitempty"`
	PlanFile    string `json:"plan_file,omitempty"`
}

// PostSummary is the listing view of a stored post.
type PostSummary struct {
	Filename    string     `json:"filename"`
	QueuedAt    *time.Time `json:"queued_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Preview     string     `json:"preview"`
}

const (
	PostStatusQueued    = "queued"
	PostStatusPublished = "published"
)
