package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postforge/internal/api/middleware"
	"github.com/maheshrc27/postforge/internal/llm"
	"github.com/maheshrc27/postforge/internal/pipeline"
	"github.com/maheshrc27/postforge/internal/repository"
	"github.com/maheshrc27/postforge/internal/search"
	"github.com/maheshrc27/postforge/internal/service"
	"github.com/maheshrc27/postforge/pkg/utils"
)

const errorMessageRunes = 500

func GetUserID(c *fiber.Ctx) string {
	userID, _ := c.Locals(middleware.UserIDLocal).(string)
	return userID
}

// ErrorResponse writes err as {"error": ...} with a status derived from the
// error kind.
func ErrorResponse(c *fiber.Ctx, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": utils.Truncate(err.Error(), errorMessageRunes),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNoPendingTopic),
		errors.Is(err, service.ErrNoActiveRun),
		errors.Is(err, service.ErrQueueEmpty),
		errors.Is(err, repository.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrEmptyPost):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, service.ErrUnknownSource),
		errors.Is(err, repository.ErrInvalidFilename):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrDelivery),
		errors.Is(err, llm.ErrBackend),
		errors.Is(err, search.ErrBackend),
		errors.Is(err, pipeline.ErrNoJSON),
		errors.Is(err, service.ErrEmptyPlan):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
