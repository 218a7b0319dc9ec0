package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/service"
	"github.com/opengrade/grading-api/internal/utils"
)

// AssignmentHandler wires the administrator planning routes.
type AssignmentHandler struct {
	planner   service.PlannerService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewAssignmentHandler constructs the handler.
func NewAssignmentHandler(planner service.PlannerService, validate *validator.Validate, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		planner:   planner,
		validator: validate,
		logger:    logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register attaches assignment endpoints to the router group.
func (h *AssignmentHandler) Register(router fiber.Router) {
	router.Post("", h.assign)
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

func (h *AssignmentHandler) assign(c *fiber.Ctx) error {
	var payload dto.AssignRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_payload", "invalid request body")
	}

	assignment, err := h.planner.Assign(c.Context(), payload)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "grading assignment created", assignment)
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	examID := c.Query("exam_id")
	if examID == "" {
		return utils.SendErrorKind(c, fiber.StatusBadRequest, "invalid_query", "exam_id query parameter is required")
	}

	assignments, err := h.planner.ListAssignments(c.Context(), examID)
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading assignments retrieved", assignments)
}

func (h *AssignmentHandler) get(c *fiber.Ctx) error {
	assignment, err := h.planner.GetAssignment(c.Context(), c.Params("id"))
	if err != nil {
		return sendDomainError(c, *requestLogger(h.logger, c), err)
	}

	return utils.SendSuccess(c, "grading assignment retrieved", assignment)
}
