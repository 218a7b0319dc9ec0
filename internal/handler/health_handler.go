package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opengrade/grading-api/internal/config"
	"github.com/opengrade/grading-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
// The statistics timezone is included because day-bucketed progress
// figures depend on it and operators routinely need to confirm it.
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	Service       string    `json:"service"`
	Environment   string    `json:"environment"`
	StatsTimezone string    `json:"stats_timezone"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:        "ok",
			Timestamp:     time.Now().UTC(),
			Service:       cfg.AppName,
			Environment:   cfg.AppEnv,
			StatsTimezone: cfg.StatsTimezone,
		}

		return utils.SendSuccess(c, "grading engine healthy", payload)
	}
}
