package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/service"
	"github.com/opengrade/grading-api/internal/utils"
)

// ProgressHandler wires the read-side progress and statistics routes.
type ProgressHandler struct {
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewProgressHandler constructs the handler.
func NewProgressHandler(progress service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		logger:   logger.With().Str("component", "progress_handler").Logger(),
	}
}

// RegisterExams attaches the exam progress endpoint.
func (h *ProgressHandler) RegisterExams(router fiber.Router) {
	router.Get("/:id/progress", h.examProgress)
}

// RegisterStatistics attaches the dashboard statistics endpoint.
func (h *ProgressHandler) RegisterStatistics(router fiber.Router) {
	router.Get("", h.statistics)
}

func (h *ProgressHandler) examProgress(c *fiber.Ctx) error {
	progress, err := h.progress.ExamProgress(c.Context(), c.Params("id"))
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "exam progress computed", progress)
}

func (h *ProgressHandler) statistics(c *fiber.Ctx) error {
	// Admins may scope to any grader; graders see their own numbers.
	graderID := c.Query("grader_id")
	if graderID == "" && c.Locals("user_role") == "grader" {
		graderID = graderIDFromContext(c)
	}

	statistics, err := h.progress.DashboardStatistics(c.Context(), graderID)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading statistics computed", statistics)
}
