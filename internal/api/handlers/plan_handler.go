package handlers

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postforge/internal/models"
	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/internal/transfer"
)

type PlanHandler struct {
	s service.PlannerService
}

func NewPlanHandler(s service.PlannerService) *PlanHandler {
	return &PlanHandler{s: s}
}

// GeneratePlan creates a new weekly plan. While the latest plan still has
// open topics the request is refused unless ?force=true.
func (h *PlanHandler) GeneratePlan(c *fiber.Ctx) error {
	if !c.QueryBool("force", false) {
		current, err := h.s.GetLatestPlan(c.UserContext())
		if err != nil {
			return ErrorResponse(c, err)
		}
		if open := current.OpenTopics(); open > 0 {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":       "Latest plan still has open topics, pass force=true to replace it",
				"open_topics": open,
			})
		}
	}

	plan, err := h.s.GenerateWeeklyPlan(c.UserContext())
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(planResponse(plan))
}

func (h *PlanHandler) LatestPlan(c *fiber.Ctx) error {
	plan, err := h.s.GetLatestPlan(c.UserContext())
	if err != nil {
		return ErrorResponse(c, err)
	}
	if plan == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No content plan yet",
		})
	}
	return c.Status(fiber.StatusOK).JSON(planResponse(plan))
}

func (h *PlanHandler) RefinePlan(c *fiber.Ctx) error {
	var req transfer.RefinePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Unable to parse request")
	}
	if strings.TrimSpace(req.Feedback) == "" {
		return badRequest(c, "feedback is required")
	}

	current, err := h.s.GetLatestPlan(c.UserContext())
	if err != nil {
		return ErrorResponse(c, err)
	}
	if current == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No content plan to refine",
		})
	}

	plan, err := h.s.RefinePlan(c.UserContext(), current, req.Feedback)
	if err != nil {
		return ErrorResponse(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(planResponse(plan))
}

func planResponse(plan *models.ContentPlan) transfer.PlanResponse {
	return transfer.PlanResponse{
		File: filepath.Base(plan.File),
		Plan: plan,
		Text: service.FormatPlan(plan),
	}
}
