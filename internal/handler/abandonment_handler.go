package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/repository"
	"github.com/opengrade/grading-api/internal/service"
	"github.com/opengrade/grading-api/internal/utils"
)

// AbandonmentHandler exposes the abandonment audit trail and the tasks the
// reassignment policy flagged for administrator attention.
type AbandonmentHandler struct {
	policy service.ReassignmentService
	logger zerolog.Logger
}

// NewAbandonmentHandler constructs the handler.
func NewAbandonmentHandler(policy service.ReassignmentService, logger zerolog.Logger) *AbandonmentHandler {
	return &AbandonmentHandler{
		policy: policy,
		logger: logger.With().Str("component", "abandonment_handler").Logger(),
	}
}

// Register attaches the audit endpoints to the router group.
func (h *AbandonmentHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/flagged", h.flagged)
}

func (h *AbandonmentHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_query", "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_query", "invalid page size")
	}

	filter := repository.AbandonmentFilter{
		TaskID:   c.Query("task_id"),
		ExamID:   c.Query("exam_id"),
		GraderID: c.Query("grader_id"),
		Page:     page,
		PageSize: pageSize,
	}

	records, total, err := h.policy.ListAbandonments(c.Context(), filter)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "abandonment history retrieved", fiber.Map{
		"items": records,
		"total": total,
	})
}

func (h *AbandonmentHandler) flagged(c *fiber.Ctx) error {
	tasks, err := h.policy.FlaggedTasks(c.Context())
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "flagged tasks retrieved", tasks)
}
