package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
)

// PlannerService converts "assign question N of exam E to graders [g1..gk]"
// requests into concrete grading tasks, one per eligible submission.
type PlannerService interface {
	Assign(ctx context.Context, payload dto.AssignRequest) (dto.AssignmentResponse, error)
	GetAssignment(ctx context.Context, id string) (dto.AssignmentResponse, error)
	ListAssignments(ctx context.Context, examID string) ([]dto.AssignmentResponse, error)
}

type plannerService struct {
	exams       repository.ExamRepository
	submissions repository.SubmissionRepository
	tasks       repository.TaskRepository
	assignments repository.AssignmentRepository
	validator   *validator.Validate
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPlannerService constructs the assignment planner.
func NewPlannerService(exams repository.ExamRepository, submissions repository.SubmissionRepository, tasks repository.TaskRepository, assignments repository.AssignmentRepository, validate *validator.Validate, logger zerolog.Logger) PlannerService {
	return &plannerService{
		exams:       exams,
		submissions: submissions,
		tasks:       tasks,
		assignments: assignments,
		validator:   validate,
		logger:      logger.With().Str("component", "planner_service").Logger(),
		now:         time.Now,
	}
}

func (s *plannerService) Assign(ctx context.Context, payload dto.AssignRequest) (dto.AssignmentResponse, error) {
	tracer := otel.Tracer("github.com/opengrade/grading-api/internal/service/planner")
	ctx, span := tracer.Start(ctx, "planner.assign")
	span.SetAttributes(
		attribute.String("assign.exam_id", payload.ExamID),
		attribute.Int("assign.question_number", payload.QuestionNumber),
		attribute.Int("assign.grader_count", len(payload.GraderIDs)),
	)
	defer span.End()

	if len(payload.GraderIDs) == 0 {
		span.SetStatus(codes.Error, "empty_grader_set")
		return dto.AssignmentResponse{}, ErrEmptyGraderSet
	}

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AssignmentResponse{}, err
	}

	exam, err := s.exams.GetByID(ctx, payload.ExamID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrExamNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	if !exam.IsGradable() {
		span.SetStatus(codes.Error, "exam_not_gradable")
		return dto.AssignmentResponse{}, ErrExamNotGradable
	}

	if payload.QuestionNumber > exam.QuestionCount {
		span.SetStatus(codes.Error, "question_out_of_range")
		return dto.AssignmentResponse{}, ErrQuestionOutOfRange
	}

	question, err := s.exams.GetQuestion(ctx, payload.ExamID, payload.QuestionNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrQuestionOutOfRange
		}
		return dto.AssignmentResponse{}, err
	}

	submissions, err := s.submissions.ListForQuestion(ctx, payload.ExamID, payload.QuestionNumber)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	assignment := models.GradingAssignment{
		ID:             uuid.NewString(),
		ExamID:         payload.ExamID,
		QuestionNumber: payload.QuestionNumber,
		GraderIDs:      datatypes.NewJSONSlice(payload.GraderIDs),
		Status:         models.AssignmentStatusPending,
	}

	created := 0
	rebound := 0
	var tasks []models.GradingTask

	// Enumeration, duplicate filtering and task creation share one
	// transaction so two racing assign calls cannot both cover the same
	// submission.
	err = s.tasks.InTransaction(ctx, func(store repository.TaskRepository) error {
		active, err := store.ActiveSubmissionIDs(ctx, payload.ExamID, payload.QuestionNumber)
		if err != nil {
			return err
		}

		orphans, err := store.ListUnassignedPending(ctx, payload.ExamID, payload.QuestionNumber)
		if err != nil {
			return err
		}
		orphanSubmissions := make(map[string]struct{}, len(orphans))
		for _, orphan := range orphans {
			orphanSubmissions[orphan.SubmissionID] = struct{}{}
		}

		now := s.now()
		next := 0
		nextGrader := func() string {
			grader := payload.GraderIDs[next%len(payload.GraderIDs)]
			next++
			return grader
		}

		// Previously abandoned tasks are re-bound in place rather than
		// duplicated; the round-robin cursor then continues into fresh
		// submissions so load stays even.
		for _, orphan := range orphans {
			grader := nextGrader()
			update := repository.TaskUpdate{
				Status:     models.TaskStatusPending,
				GraderID:   &grader,
				AssignedAt: &now,
			}
			task, err := store.UpdateState(ctx, orphan.ID, models.TaskStatusPending, update)
			if err != nil {
				if errors.Is(err, repository.ErrStaleTaskState) {
					// Lost to a concurrent claim or assign; skip it.
					continue
				}
				return err
			}
			tasks = append(tasks, task)
			rebound++
		}

		var fresh []models.GradingTask
		for _, submission := range submissions {
			if _, covered := active[submission.ID]; covered {
				continue
			}
			if _, pooled := orphanSubmissions[submission.ID]; pooled {
				continue
			}

			grader := nextGrader()
			assignedAt := now
			fresh = append(fresh, models.GradingTask{
				ID:             uuid.NewString(),
				AssignmentID:   assignment.ID,
				ExamID:         payload.ExamID,
				QuestionNumber: payload.QuestionNumber,
				SubmissionID:   submission.ID,
				GraderID:       &grader,
				AssignedAt:     &assignedAt,
				Status:         models.TaskStatusPending,
				MaxScore:       question.MaxScore,
			})
		}

		if err := store.CreateBatch(ctx, fresh); err != nil {
			if errors.Is(err, repository.ErrDuplicateActiveTask) {
				return ErrDuplicateAssignment
			}
			return err
		}

		tasks = append(tasks, fresh...)
		created = len(fresh)
		assignment.Status = models.DeriveAssignmentStatus(tasks)

		return s.assignments.Create(ctx, &assignment)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "assign_failed")
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().
		Str("assignment_id", assignment.ID).
		Str("exam_id", payload.ExamID).
		Int("question_number", payload.QuestionNumber).
		Int("tasks_created", created).
		Int("tasks_rebound", rebound).
		Msg("grading assignment planned")

	span.SetAttributes(
		attribute.Int("assign.tasks_created", created),
		attribute.Int("assign.tasks_rebound", rebound),
	)

	return dto.AssignmentResponse{
		ID:             assignment.ID,
		ExamID:         assignment.ExamID,
		QuestionNumber: assignment.QuestionNumber,
		GraderIDs:      payload.GraderIDs,
		Status:         assignment.Status,
		TasksCreated:   created,
		TasksRebound:   rebound,
		Tasks:          dto.NewTaskResponseSlice(tasks),
		CreatedAt:      assignment.CreatedAt,
	}, nil
}

func (s *plannerService) GetAssignment(ctx context.Context, id string) (dto.AssignmentResponse, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	return dto.AssignmentResponse{
		ID:             assignment.ID,
		ExamID:         assignment.ExamID,
		QuestionNumber: assignment.QuestionNumber,
		GraderIDs:      []string(assignment.GraderIDs),
		Status:         models.DeriveAssignmentStatus(assignment.Tasks),
		Tasks:          dto.NewTaskResponseSlice(assignment.Tasks),
		CreatedAt:      assignment.CreatedAt,
	}, nil
}

// ListAssignments returns every planning record for an exam with its status
// derived from the current task states. Task details stay out of the
// listing; GetAssignment carries them.
func (s *plannerService) ListAssignments(ctx context.Context, examID string) ([]dto.AssignmentResponse, error) {
	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	assignments, err := s.assignments.ListForExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, dto.AssignmentResponse{
			ID:             assignment.ID,
			ExamID:         assignment.ExamID,
			QuestionNumber: assignment.QuestionNumber,
			GraderIDs:      []string(assignment.GraderIDs),
			Status:         models.DeriveAssignmentStatus(assignment.Tasks),
			CreatedAt:      assignment.CreatedAt,
		})
	}

	return responses, nil
}
