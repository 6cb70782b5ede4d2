package handlers

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postforge/internal/queue"
	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/internal/transfer"
)

type PostHandler struct {
	s         service.PublishService
	scheduler queue.Scheduler
}

// NewPostHandler builds the queue and publish handlers. scheduler is nil
// when Redis is not configured.
func NewPostHandler(s service.PublishService, scheduler queue.Scheduler) *PostHandler {
	return &PostHandler{s: s, scheduler: scheduler}
}

func (h *PostHandler) ListQueue(c *fiber.Ctx) error {
	status, err := h.s.QueueStatus(c.UserContext())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *PostHandler) Publish(c *fiber.Ctx) error {
	res, err := h.s.PublishNext(c.UserContext())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// SchedulePublish enqueues a publish of the next post after ?in=<duration>.
func (h *PostHandler) SchedulePublish(c *fiber.Ctx) error {
	if h.scheduler == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Scheduling requires REDIS_URI",
		})
	}
	delay, err := time.ParseDuration(c.Query("in", "0s"))
	if err != nil || delay < 0 {
		return badRequest(c, "Invalid duration in ?in=")
	}

	task, err := h.scheduler.SchedulePublish(c.UserContext(), GetUserID(c), delay)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(transfer.ScheduleResponse{
		TaskID:    task.ID,
		ProcessAt: task.ProcessAt.Format(time.RFC3339),
	})
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	source, filename := c.Params("source"), c.Params("filename")
	post, err := h.s.GetPost(c.UserContext(), source, filename)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(transfer.PostResponse{
		Source:   source,
		Filename: filepath.Base(filename),
		Post:     post,
	})
}

func (h *PostHandler) UpdatePost(c *fiber.Ctx) error {
	var req transfer.EditPostRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request")
	}
	if strings.TrimSpace(req.FinalPost) == "" {
		return badRequest(c, "final_post must not be empty")
	}

	res, err := h.s.EditPost(c.UserContext(), c.Params("source"), c.Params("filename"), req.FinalPost)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
