package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opengrade/grading-api/internal/config"
	"github.com/opengrade/grading-api/internal/handler"
	"github.com/opengrade/grading-api/internal/middleware"
	"github.com/opengrade/grading-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AssignmentHandler  *handler.AssignmentHandler
	TaskHandler        *handler.TaskHandler
	ProgressHandler    *handler.ProgressHandler
	AbandonmentHandler *handler.AbandonmentHandler
	JWTMiddleware      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	grading := app.Group("/api/v2/grading", jwtMiddleware)

	adminOnly := middleware.RequireRole("admin")
	graderOrAdmin := middleware.RequireRole("grader", "admin")

	if deps.AssignmentHandler != nil {
		assignments := grading.Group("/assignments", adminOnly)
		deps.AssignmentHandler.Register(assignments)
	}

	if deps.TaskHandler != nil {
		adminTasks := grading.Group("/tasks", adminOnly)
		deps.TaskHandler.RegisterAdmin(adminTasks)

		tasks := grading.Group("/tasks", graderOrAdmin,
			middleware.RateLimit("grading-tasks", cfg.RateLimitMax, cfg.RateLimitWindow))
		deps.TaskHandler.Register(tasks)
	}

	if deps.ProgressHandler != nil {
		exams := grading.Group("/exams", adminOnly)
		deps.ProgressHandler.RegisterExams(exams)

		statistics := grading.Group("/statistics", graderOrAdmin)
		deps.ProgressHandler.RegisterStatistics(statistics)
	}

	if deps.AbandonmentHandler != nil {
		abandonments := grading.Group("/abandonments", adminOnly)
		deps.AbandonmentHandler.Register(abandonments)
	}
}
