package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
	"github.com/opengrade/grading-api/internal/service"
	"github.com/opengrade/grading-api/internal/utils"
)

// TaskHandler wires the grader work queue routes: the queue view plus the
// claim / save-progress / complete / abandon transitions.
type TaskHandler struct {
	queue     service.WorkQueueService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewTaskHandler constructs the handler.
func NewTaskHandler(queue service.WorkQueueService, validate *validator.Validate, logger zerolog.Logger) *TaskHandler {
	return &TaskHandler{
		queue:     queue,
		validator: validate,
		logger:    logger.With().Str("component", "task_handler").Logger(),
	}
}

// Register attaches the grader-facing endpoints to the router group.
func (h *TaskHandler) Register(router fiber.Router) {
	router.Get("/queue", h.queueView)
	router.Get("/:id", h.get)
	router.Post("/:id/claim", h.claim)
	router.Patch("/:id/progress", h.saveProgress)
	router.Post("/:id/complete", h.complete)
	router.Post("/:id/abandon", h.abandon)
}

// RegisterAdmin attaches the administrator listing endpoint.
func (h *TaskHandler) RegisterAdmin(router fiber.Router) {
	router.Get("", h.list)
}

func (h *TaskHandler) queueView(c *fiber.Ctx) error {
	graderID := graderIDFromContext(c)
	if graderID == "" {
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "missing_identity", "grader identity missing")
	}

	tasks, err := h.queue.ListForGrader(c.Context(), graderID, c.Query("exam_id"))
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading queue retrieved", tasks)
}

func (h *TaskHandler) get(c *fiber.Ctx) error {
	task, err := h.queue.Get(c.Context(), c.Params("id"))
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading task retrieved", task)
}

func (h *TaskHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_query", "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_query", "invalid page size")
	}

	filter := repository.TaskFilter{
		ExamID:   c.Query("exam_id"),
		GraderID: c.Query("grader_id"),
		Status:   models.TaskStatus(c.Query("status")),
		Page:     page,
		PageSize: pageSize,
	}

	tasks, err := h.queue.List(c.Context(), filter)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading tasks retrieved", tasks)
}

func (h *TaskHandler) claim(c *fiber.Ctx) error {
	graderID := graderIDFromContext(c)
	if graderID == "" {
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "missing_identity", "grader identity missing")
	}

	task, err := h.queue.Claim(c.Context(), c.Params("id"), graderID)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading task claimed", task)
}

func (h *TaskHandler) saveProgress(c *fiber.Ctx) error {
	graderID := graderIDFromContext(c)
	if graderID == "" {
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "missing_identity", "grader identity missing")
	}

	var payload dto.SaveProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid request body")
	}

	task, err := h.queue.SaveProgress(c.Context(), c.Params("id"), graderID, payload)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading progress saved", task)
}

func (h *TaskHandler) complete(c *fiber.Ctx) error {
	graderID := graderIDFromContext(c)
	if graderID == "" {
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "missing_identity", "grader identity missing")
	}

	var payload dto.CompleteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid request body")
	}

	task, err := h.queue.Complete(c.Context(), c.Params("id"), graderID, payload)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading task completed", task)
}

func (h *TaskHandler) abandon(c *fiber.Ctx) error {
	graderID := graderIDFromContext(c)
	if graderID == "" {
		return utils.SendErrorKind(c, fiber.StatusUnauthorized, "missing_identity", "grader identity missing")
	}

	var payload dto.AbandonRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid request body")
	}

	task, err := h.queue.Abandon(c.Context(), c.Params("id"), graderID, payload)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading task abandoned", task)
}
