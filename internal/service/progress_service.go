package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
)

// ProgressService is the read side of the engine: progress and statistics
// derived from the task store on demand, never cached across queries.
type ProgressService interface {
	ExamProgress(ctx context.Context, examID string) (dto.ExamProgressResponse, error)
	DashboardStatistics(ctx context.Context, graderID string) (dto.GradingStatisticsResponse, error)
}

type progressService struct {
	tasks    repository.TaskRepository
	exams    repository.ExamRepository
	location *time.Location
	window   time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewProgressService constructs the aggregator. location fixes the calendar
// boundaries used for today/week/month counts; window is the trailing
// interval used for completion-rate extrapolation.
func NewProgressService(tasks repository.TaskRepository, exams repository.ExamRepository, location *time.Location, window time.Duration, logger zerolog.Logger) ProgressService {
	if location == nil {
		location = time.UTC
	}
	if window <= 0 {
		window = time.Hour
	}

	return &progressService{
		tasks:    tasks,
		exams:    exams,
		location: location,
		window:   window,
		logger:   logger.With().Str("component", "progress_service").Logger(),
		now:      time.Now,
	}
}

func (s *progressService) ExamProgress(ctx context.Context, examID string) (dto.ExamProgressResponse, error) {
	tracer := otel.Tracer("github.com/opengrade/grading-api/internal/service/progress")
	ctx, span := tracer.Start(ctx, "progress.exam")
	span.SetAttributes(attribute.String("progress.exam_id", examID))
	defer span.End()

	if _, err := s.exams.GetByID(ctx, examID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ExamProgressResponse{}, ErrExamNotFound
		}
		return dto.ExamProgressResponse{}, err
	}

	tasks, err := s.tasks.List(ctx, repository.TaskFilter{ExamID: examID})
	if err != nil {
		return dto.ExamProgressResponse{}, err
	}

	now := s.now()
	windowStart := now.Add(-s.window)

	completed := 0
	completedLastWindow := 0
	questions := make(map[int]struct{})
	perGrader := make(map[string]*dto.GraderProgress)

	for _, task := range tasks {
		questions[task.QuestionNumber] = struct{}{}

		if task.GraderID != nil {
			entry, ok := perGrader[*task.GraderID]
			if !ok {
				entry = &dto.GraderProgress{GraderID: *task.GraderID}
				perGrader[*task.GraderID] = entry
			}
			entry.Total++
			switch task.Status {
			case models.TaskStatusClaimed:
				entry.Claimed++
			case models.TaskStatusCompleted:
				entry.Completed++
			}
		}

		if task.Status == models.TaskStatusCompleted {
			completed++
			if task.CompletedAt != nil && task.CompletedAt.After(windowStart) {
				completedLastWindow++
			}
		}
	}

	graders := make([]dto.GraderProgress, 0, len(perGrader))
	for _, entry := range perGrader {
		if entry.Total > 0 {
			entry.Percent = 100 * float64(entry.Completed) / float64(entry.Total)
		}
		graders = append(graders, *entry)
	}
	sortGraderProgress(graders)

	response := dto.ExamProgressResponse{
		ExamID:                examID,
		QuestionsUnderGrading: len(questions),
		TotalTasks:            len(tasks),
		CompletedTasks:        completed,
		Graders:               graders,
		CompletedLastWindow:   completedLastWindow,
	}
	if len(tasks) > 0 {
		response.Percent = 100 * float64(completed) / float64(len(tasks))
	}

	// Linear extrapolation over the trailing window; unknown (absent) when
	// nothing completed inside it.
	remaining := len(tasks) - completed
	if completedLastWindow > 0 && remaining > 0 {
		rate := float64(completedLastWindow) / s.window.Seconds()
		estimate := int64(float64(remaining) / rate)
		response.EstimatedSecondsLeft = &estimate
	}

	span.SetAttributes(
		attribute.Int("progress.total_tasks", len(tasks)),
		attribute.Int("progress.completed_tasks", completed),
	)

	return response, nil
}

func (s *progressService) DashboardStatistics(ctx context.Context, graderID string) (dto.GradingStatisticsResponse, error) {
	tracer := otel.Tracer("github.com/opengrade/grading-api/internal/service/progress")
	ctx, span := tracer.Start(ctx, "progress.dashboard")
	defer span.End()

	tasks, err := s.tasks.List(ctx, repository.TaskFilter{GraderID: graderID})
	if err != nil {
		return dto.GradingStatisticsResponse{}, err
	}

	now := s.now().In(s.location)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.location)
	weekStart := startOfWeek(now)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.location)

	response := dto.GradingStatisticsResponse{Timezone: s.location.String()}

	var totalDuration time.Duration
	var measured int

	for _, task := range tasks {
		switch task.Status {
		case models.TaskStatusPending:
			response.Counts.Pending++
		case models.TaskStatusClaimed:
			response.Counts.Claimed++
		case models.TaskStatusCompleted:
			response.Counts.Completed++
		}

		if task.Status != models.TaskStatusCompleted || task.CompletedAt == nil {
			continue
		}

		completedAt := task.CompletedAt.In(s.location)
		if !completedAt.Before(dayStart) {
			response.CompletedToday++
		}
		if !completedAt.Before(weekStart) {
			response.CompletedThisWeek++
		}
		if !completedAt.Before(monthStart) {
			response.CompletedThisMonth++
		}

		if task.StartedAt != nil {
			totalDuration += task.CompletedAt.Sub(*task.StartedAt)
			measured++
		}
	}

	if measured > 0 {
		efficiency := totalDuration.Seconds() / float64(measured)
		response.EfficiencySeconds = &efficiency
	}

	span.SetAttributes(attribute.Int("progress.task_count", len(tasks)))

	return response, nil
}

// startOfWeek returns midnight of the Monday of t's week in t's location.
func startOfWeek(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}

func sortGraderProgress(entries []dto.GraderProgress) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].GraderID < entries[j].GraderID
	})
}
