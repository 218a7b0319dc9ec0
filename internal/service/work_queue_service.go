package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/events"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/observability"
	"github.com/opengrade/grading-api/internal/repository"
)

// WorkQueueService is the per-grader surface over the task store: claim,
// save progress, complete and abandon, plus the FIFO queue view.
//
// Transitions are serialized per task by the store's compare-and-swap
// update; when two conflicting transitions race, exactly one wins and the
// loser observes the new state.
type WorkQueueService interface {
	Claim(ctx context.Context, taskID, graderID string) (dto.TaskResponse, error)
	SaveProgress(ctx context.Context, taskID, graderID string, payload dto.SaveProgressRequest) (dto.TaskResponse, error)
	Complete(ctx context.Context, taskID, graderID string, payload dto.CompleteRequest) (dto.TaskResponse, error)
	Abandon(ctx context.Context, taskID, graderID string, payload dto.AbandonRequest) (dto.TaskResponse, error)
	ListForGrader(ctx context.Context, graderID, examID string) ([]dto.TaskResponse, error)
	Get(ctx context.Context, taskID string) (dto.TaskResponse, error)
	List(ctx context.Context, filter repository.TaskFilter) ([]dto.TaskResponse, error)
}

type workQueueService struct {
	tasks       repository.TaskRepository
	assignments repository.AssignmentRepository
	bus         *events.Bus
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	now         func() time.Time
}

// NewWorkQueueService constructs the grader work queue.
func NewWorkQueueService(tasks repository.TaskRepository, assignments repository.AssignmentRepository, bus *events.Bus, validate *validator.Validate, logger zerolog.Logger) WorkQueueService {
	return &workQueueService{
		tasks:       tasks,
		assignments: assignments,
		bus:         bus,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "work_queue_service").Logger(),
		now:         time.Now,
	}
}

func (s *workQueueService) Claim(ctx context.Context, taskID, graderID string) (dto.TaskResponse, error) {
	ctx, span := s.startSpan(ctx, "work_queue.claim", taskID, graderID)
	defer span.End()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if !task.AssignedTo(graderID) {
		span.SetStatus(codes.Error, "not_assigned")
		return dto.TaskResponse{}, ErrNotAssignedToGrader
	}

	if task.Status != models.TaskStatusPending {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.TaskResponse{}, ErrInvalidTransition
	}

	startedAt := s.now()
	updated, err := s.tasks.UpdateState(ctx, taskID, models.TaskStatusPending, repository.TaskUpdate{
		Status:    models.TaskStatusClaimed,
		StartedAt: &startedAt,
	})
	if err != nil {
		observability.TaskTransitions().WithLabelValues("claim", "conflict").Inc()
		return dto.TaskResponse{}, s.transitionError(err)
	}

	observability.TaskTransitions().WithLabelValues("claim", "ok").Inc()
	s.refreshAssignmentStatus(ctx, updated.AssignmentID)

	return dto.NewTaskResponse(updated), nil
}

func (s *workQueueService) SaveProgress(ctx context.Context, taskID, graderID string, payload dto.SaveProgressRequest) (dto.TaskResponse, error) {
	ctx, span := s.startSpan(ctx, "work_queue.save_progress", taskID, graderID)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.TaskResponse{}, err
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if !task.AssignedTo(graderID) {
		span.SetStatus(codes.Error, "not_assigned")
		return dto.TaskResponse{}, ErrNotAssignedToGrader
	}

	if task.Status != models.TaskStatusClaimed {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.TaskResponse{}, ErrInvalidTransition
	}

	if payload.Score != nil && (*payload.Score < 0 || *payload.Score > task.MaxScore) {
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.TaskResponse{}, ErrScoreOutOfRange
	}

	savedAt := s.now()
	update := repository.TaskUpdate{
		Status:              models.TaskStatusClaimed,
		Score:               payload.Score,
		LastProgressSavedAt: &savedAt,
	}
	if payload.Feedback != nil {
		feedback := s.sanitizeText(*payload.Feedback)
		update.Feedback = &feedback
	}

	updated, err := s.tasks.UpdateState(ctx, taskID, models.TaskStatusClaimed, update)
	if err != nil {
		observability.TaskTransitions().WithLabelValues("save_progress", "conflict").Inc()
		return dto.TaskResponse{}, s.transitionError(err)
	}

	observability.TaskTransitions().WithLabelValues("save_progress", "ok").Inc()

	return dto.NewTaskResponse(updated), nil
}

func (s *workQueueService) Complete(ctx context.Context, taskID, graderID string, payload dto.CompleteRequest) (dto.TaskResponse, error) {
	ctx, span := s.startSpan(ctx, "work_queue.complete", taskID, graderID)
	defer span.End()

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if task.Status == models.TaskStatusCompleted {
		span.SetStatus(codes.Error, "already_completed")
		return dto.TaskResponse{}, ErrAlreadyCompleted
	}

	// State before ownership: a task that slipped back to the pool reports
	// the transition violation, not a stale binding.
	if task.Status != models.TaskStatusClaimed {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.TaskResponse{}, ErrInvalidTransition
	}

	if !task.AssignedTo(graderID) {
		span.SetStatus(codes.Error, "not_assigned")
		return dto.TaskResponse{}, ErrNotAssignedToGrader
	}

	if payload.Score == nil {
		span.SetStatus(codes.Error, "missing_score")
		return dto.TaskResponse{}, ErrMissingScore
	}

	if *payload.Score < 0 || *payload.Score > task.MaxScore {
		span.SetStatus(codes.Error, "score_out_of_range")
		return dto.TaskResponse{}, ErrScoreOutOfRange
	}

	completedAt := s.now()
	feedback := s.sanitizeText(payload.Feedback)
	updated, err := s.tasks.UpdateState(ctx, taskID, models.TaskStatusClaimed, repository.TaskUpdate{
		Status:      models.TaskStatusCompleted,
		Score:       payload.Score,
		Feedback:    &feedback,
		CompletedAt: &completedAt,
	})
	if err != nil {
		observability.TaskTransitions().WithLabelValues("complete", "conflict").Inc()
		return dto.TaskResponse{}, s.transitionError(err)
	}

	observability.TaskTransitions().WithLabelValues("complete", "ok").Inc()
	s.refreshAssignmentStatus(ctx, updated.AssignmentID)

	s.logger.Info().
		Str("task_id", taskID).
		Str("grader_id", graderID).
		Float64("score", *payload.Score).
		Msg("grading task completed")

	return dto.NewTaskResponse(updated), nil
}

func (s *workQueueService) Abandon(ctx context.Context, taskID, graderID string, payload dto.AbandonRequest) (dto.TaskResponse, error) {
	ctx, span := s.startSpan(ctx, "work_queue.abandon", taskID, graderID)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		return dto.TaskResponse{}, err
	}

	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	if task.Status == models.TaskStatusCompleted {
		span.SetStatus(codes.Error, "invalid_transition")
		return dto.TaskResponse{}, ErrInvalidTransition
	}

	// Declining an already released task is idempotent.
	if task.GraderID == nil {
		return dto.NewTaskResponse(task), nil
	}

	if *task.GraderID != graderID {
		span.SetStatus(codes.Error, "not_assigned")
		return dto.TaskResponse{}, ErrNotAssignedToGrader
	}

	updated, err := s.tasks.UpdateState(ctx, taskID, task.Status, repository.TaskUpdate{
		Status:      models.TaskStatusPending,
		ClearGrader: true,
	})
	if err != nil {
		observability.TaskTransitions().WithLabelValues("abandon", "conflict").Inc()
		return dto.TaskResponse{}, s.transitionError(err)
	}

	observability.TaskTransitions().WithLabelValues("abandon", "ok").Inc()
	s.refreshAssignmentStatus(ctx, updated.AssignmentID)

	reason := s.sanitizeText(payload.Reason)
	if s.bus != nil {
		s.bus.PublishTaskAbandoned(ctx, events.TaskAbandoned{
			TaskID:         updated.ID,
			ExamID:         updated.ExamID,
			QuestionNumber: updated.QuestionNumber,
			GraderID:       graderID,
			Reason:         reason,
			OccurredAt:     s.now(),
		})
	}

	s.logger.Info().
		Str("task_id", taskID).
		Str("grader_id", graderID).
		Str("reason", reason).
		Msg("grading task abandoned")

	return dto.NewTaskResponse(updated), nil
}

func (s *workQueueService) ListForGrader(ctx context.Context, graderID, examID string) ([]dto.TaskResponse, error) {
	tasks, err := s.tasks.List(ctx, repository.TaskFilter{GraderID: graderID, ExamID: examID})
	if err != nil {
		return nil, err
	}

	return dto.NewTaskResponseSlice(tasks), nil
}

func (s *workQueueService) Get(ctx context.Context, taskID string) (dto.TaskResponse, error) {
	task, err := s.getTask(ctx, taskID)
	if err != nil {
		return dto.TaskResponse{}, err
	}

	return dto.NewTaskResponse(task), nil
}

func (s *workQueueService) List(ctx context.Context, filter repository.TaskFilter) ([]dto.TaskResponse, error) {
	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return dto.NewTaskResponseSlice(tasks), nil
}

func (s *workQueueService) getTask(ctx context.Context, taskID string) (models.GradingTask, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.GradingTask{}, ErrTaskNotFound
		}
		return models.GradingTask{}, err
	}

	return task, nil
}

// transitionError maps a lost compare-and-swap to the domain error the
// caller should see: the task moved on, so the attempted transition is no
// longer valid from its current state.
func (s *workQueueService) transitionError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTaskNotFound
	}
	if !errors.Is(err, repository.ErrStaleTaskState) {
		return err
	}

	return ErrInvalidTransition
}

// refreshAssignmentStatus mirrors the aggregate task state onto the owning
// assignment. Best effort: a failed refresh is logged, never surfaced.
func (s *workQueueService) refreshAssignmentStatus(ctx context.Context, assignmentID string) {
	if assignmentID == "" {
		return
	}

	tasks, err := s.tasks.ListForAssignment(ctx, assignmentID)
	if err != nil {
		s.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("failed to load assignment tasks")
		return
	}

	status := models.DeriveAssignmentStatus(tasks)
	if err := s.assignments.UpdateStatus(ctx, assignmentID, status); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn().Err(err).Str("assignment_id", assignmentID).Msg("failed to refresh assignment status")
	}
}

func (s *workQueueService) sanitizeText(input string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(input))
}

func (s *workQueueService) startSpan(ctx context.Context, name, taskID, graderID string) (context.Context, trace.Span) {
	tracer := otel.Tracer("github.com/opengrade/grading-api/internal/service/work_queue")
	ctx, span := tracer.Start(ctx, name)
	span.SetAttributes(
		attribute.String("task.id", taskID),
		attribute.String("task.grader_id", graderID),
	)
	return ctx, span
}
