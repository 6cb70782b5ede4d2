package transfer

import "github.com/maheshrc27/postforge/internal/models"

type RefinePlanRequest struct {
	Feedback string `json:"feedback"`
}

type PlanResponse struct {
	File string              `json:"file"`
	Plan *models.ContentPlan `json:"plan"`
	Text string              `json:"text"`
}
