package transfer

import "github.com/maheshrc27/postforge/internal/models"

type EditPostRequest struct {
	FinalPost string `json:"final_post"`
}

type PostResponse struct {
	Source   string             `json:"source"`
	Filename string             `json:"filename"`
	Post     *models.PostRecord `json:"post"`
}

type ScheduleResponse struct {
	TaskID    string `json:"task_id"`
	ProcessAt string `json:"process_at"`
}
