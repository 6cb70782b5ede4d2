package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/maheshrc27/postforge/internal/api/handlers"
	"github.com/maheshrc27/postforge/internal/api/middleware"
	"github.com/maheshrc27/postforge/internal/metrics"
	"github.com/maheshrc27/postforge/pkg/utils"
)

type Handlers struct {
	Runs  *handlers.RunHandler
	Posts *handlers.PostHandler
	Plans *handlers.PlanHandler
}

// NewApp builds the fiber app with the admin API and /metrics.
func NewApp(h Handlers, m *metrics.Metrics, log logrus.FieldLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.WithError(err).WithField("path", c.Path()).Error("request_failed")
			}
			return c.Status(code).JSON(fiber.Map{"error": utils.Truncate(err.Error(), 500)})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: `{"time":"${time}","status":${status},"latency":"${latency}","method":"${method}","path":"${path}"}` + "\n",
	}))
	app.Use(m.Middleware())

	app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))

	api := app.Group("/api")
	api.Use(middleware.RequireUser())

	api.Post("/posts", h.Runs.CreatePost)
	api.Post("/autopost", h.Runs.Autopost)
	api.Post("/runs/cancel", h.Runs.Cancel)
	api.Get("/runs/current", h.Runs.Current)

	api.Get("/queue", h.Posts.ListQueue)
	api.Post("/publish", h.Posts.Publish)
	api.Post("/publish/schedule", h.Posts.SchedulePublish)
	api.Get("/posts/:source/:filename", h.Posts.GetPost)
	api.Put("/posts/:source/:filename", h.Posts.UpdatePost)

	api.Post("/plans", h.Plans.GeneratePlan)
	api.Get("/plans/latest", h.Plans.LatestPlan)
	api.Post("/plans/latest/refine", h.Plans.RefinePlan)

	return app
}
