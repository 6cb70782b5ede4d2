package transfer

import "github.com/maheshrc27/postforge/internal/models"

type BriefRequest struct {
	TopicAngle  string `json:"topic_angle"`
	Audience    string `json:"audience"`
	KeyTakeaway string `json:"key_takeaway"`
	ExtraPoints string `json:"extra_points"`
}

func (r BriefRequest) Brief() models.Brief {
	audience := r.Audience
	if audience == "" {
		audience = "all"
	}
	return models.Brief{
		TopicAngle:  r.TopicAngle,
		Audience:    audience,
		KeyTakeaway: r.KeyTakeaway,
		ExtraPoints: r.ExtraPoints,
	}
}
