package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/middleware"
	"github.com/opengrade/grading-api/internal/service"
	"github.com/opengrade/grading-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func graderIDFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_id"); v != nil {
		switch id := v.(type) {
		case string:
			return strings.TrimSpace(id)
		case fmt.Stringer:
			return strings.TrimSpace(id.String())
		}
	}
	return ""
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// sendDomainError maps the engine's error taxonomy onto HTTP statuses. Any
// error outside the taxonomy is treated as a backing-store failure: the
// caller may retry, the engine never does.
func sendDomainError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "validation_failed", validationErrors.Error())
	}

	kind := service.ErrorKind(err)
	switch kind {
	case "not_found":
		return utils.SendErrorKind(c, fiber.StatusNotFound, kind, err.Error())
	case "invalid_transition", "invalid_state", "duplicate_assignment", "already_completed":
		return utils.SendErrorKind(c, fiber.StatusConflict, kind, err.Error())
	case "not_assigned_to_grader":
		return utils.SendErrorKind(c, fiber.StatusForbidden, kind, err.Error())
	case "empty_grader_set", "question_out_of_range", "score_out_of_range", "missing_score":
		return utils.SendErrorKind(c, fiber.StatusUnprocessableEntity, kind, err.Error())
	default:
		logger.Error().Err(err).Msg("backing store failure")
		return utils.SendErrorKind(c, fiber.StatusServiceUnavailable, "store_unavailable", "backing store unavailable, please retry")
	}
}
