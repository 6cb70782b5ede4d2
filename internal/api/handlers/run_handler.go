package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/internal/topic"
	"github.com/maheshrc27/postforge/internal/transfer"
)

type RunHandler struct {
	s     service.AutopostService
	topic *topic.Config
}

func NewRunHandler(s service.AutopostService, cfg *topic.Config) *RunHandler {
	return &RunHandler{s: s, topic: cfg}
}

// CreatePost starts a pipeline run for a brief written by the user.
func (h *RunHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.BriefRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse brief")
	}
	req.TopicAngle = strings.TrimSpace(req.TopicAngle)
	req.KeyTakeaway = strings.TrimSpace(req.KeyTakeaway)
	if req.TopicAngle == "" || req.KeyTakeaway == "" {
		return badRequest(c, "topic_angle and key_takeaway are required")
	}
	if !h.known(h.topic.ContentTypes, req.TopicAngle) {
		return badRequest(c, "Unknown topic_angle "+req.TopicAngle)
	}
	if req.Audience != "" && req.Audience != "all" && !h.known(h.topic.Audiences, req.Audience) {
		return badRequest(c, "Unknown audience "+req.Audience)
	}

	status, err := h.s.StartBrief(c.UserContext(), GetUserID(c), req.Brief())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}

// Autopost starts a run for the next pending topic of the content plan.
func (h *RunHandler) Autopost(c *fiber.Ctx) error {
	status, err := h.s.StartAutopost(c.UserContext(), GetUserID(c))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(status)
}

func (h *RunHandler) Cancel(c *fiber.Ctx) error {
	if err := h.s.Cancel(c.UserContext(), GetUserID(c)); err != nil {
		return ErrorResponse(c, err)
	}
	status, _ := h.s.Current(GetUserID(c))
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *RunHandler) Current(c *fiber.Ctx) error {
	status, ok := h.s.Current(GetUserID(c))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No runs yet",
		})
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *RunHandler) known(options []topic.Option, key string) bool {
	if len(options) == 0 {
		return true
	}
	for _, o := range options {
		if o.Key == key {
			return true
		}
	}
	return false
}
