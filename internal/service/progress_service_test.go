package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

type fakeExamRepo struct {
	exams map[string]models.Exam
}

func (r *fakeExamRepo) GetByID(ctx context.Context, id string) (models.Exam, error) {
	exam, ok := r.exams[id]
	if !ok {
		return models.Exam{}, gorm.ErrRecordNotFound
	}
	return exam, nil
}

func (r *fakeExamRepo) GetQuestion(ctx context.Context, examID string, number int) (models.ExamQuestion, error) {
	return models.ExamQuestion{}, gorm.ErrRecordNotFound
}

func completedTaskAt(id, graderID string, startedAt, completedAt time.Time) models.GradingTask {
	score := 7.5
	task := claimedTask(id, graderID, 10)
	task.Status = models.TaskStatusCompleted
	task.Score = &score
	task.StartedAt = &startedAt
	task.CompletedAt = &completedAt
	return task
}

func fixedProgressService(repo *memoryTaskRepo, exams *fakeExamRepo, loc *time.Location, window time.Duration, now time.Time) ProgressService {
	svc := NewProgressService(repo, exams, loc, window, testLogger()).(*progressService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestExamProgressAggregatesPerGrader(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	recent := completedTaskAt("task-1", "g1", now.Add(-40*time.Minute), now.Add(-10*time.Minute))
	old := completedTaskAt("task-2", "g1", now.Add(-5*time.Hour), now.Add(-4*time.Hour))
	claimed := claimedTask("task-3", "g2", 10)
	pending := pendingTask("task-4", "g2", 10)
	repo := newMemoryTaskRepo(recent, old, claimed, pending)

	exams := &fakeExamRepo{exams: map[string]models.Exam{
		"exam-1": {ID: "exam-1", Status: models.ExamStatusGrading, QuestionCount: 5},
	}}
	svc := fixedProgressService(repo, exams, time.UTC, time.Hour, now)

	progress, err := svc.ExamProgress(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Equal(t, 4, progress.TotalTasks)
	require.Equal(t, 2, progress.CompletedTasks)
	require.Equal(t, 50.0, progress.Percent)
	require.Equal(t, 1, progress.CompletedLastWindow)

	// One completion in the trailing hour, two tasks remaining.
	require.NotNil(t, progress.EstimatedSecondsLeft)
	require.Equal(t, int64(2*3600), *progress.EstimatedSecondsLeft)

	require.Len(t, progress.Graders, 2)
	require.Equal(t, "g1", progress.Graders[0].GraderID)
	require.Equal(t, 2, progress.Graders[0].Completed)
	require.Equal(t, 100.0, progress.Graders[0].Percent)
	require.Equal(t, "g2", progress.Graders[1].GraderID)
	require.Equal(t, 1, progress.Graders[1].Claimed)
	require.Equal(t, 0.0, progress.Graders[1].Percent)
}

func TestExamProgressUnknownEstimateWithoutRecentCompletions(t *testing.T) {
	now := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

	stale := completedTaskAt("task-1", "g1", now.Add(-6*time.Hour), now.Add(-5*time.Hour))
	open := pendingTask("task-2", "g1", 10)
	repo := newMemoryTaskRepo(stale, open)
	exams := &fakeExamRepo{exams: map[string]models.Exam{
		"exam-1": {ID: "exam-1", Status: models.ExamStatusGrading},
	}}
	svc := fixedProgressService(repo, exams, time.UTC, time.Hour, now)

	progress, err := svc.ExamProgress(context.Background(), "exam-1")
	require.NoError(t, err)
	require.Equal(t, 0, progress.CompletedLastWindow)
	require.Nil(t, progress.EstimatedSecondsLeft)
}

func TestExamProgressUnknownExam(t *testing.T) {
	repo := newMemoryTaskRepo()
	exams := &fakeExamRepo{exams: map[string]models.Exam{}}
	svc := NewProgressService(repo, exams, time.UTC, time.Hour, testLogger())

	_, err := svc.ExamProgress(context.Background(), "missing")
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestDashboardStatisticsCalendarWindows(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	// Wednesday 2025-03-12 10:00 in Jakarta.
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, jakarta)

	today := completedTaskAt("task-1", "g1", now.Add(-2*time.Hour), now.Add(-time.Hour))
	monday := completedTaskAt("task-2", "g1", now.AddDate(0, 0, -2).Add(-time.Hour), now.AddDate(0, 0, -2))
	lastWeek := completedTaskAt("task-3", "g1", now.AddDate(0, 0, -6).Add(-30*time.Minute), now.AddDate(0, 0, -6))
	lastMonth := completedTaskAt("task-4", "g1", now.AddDate(0, -1, 0).Add(-time.Hour), now.AddDate(0, -1, 0))
	working := claimedTask("task-5", "g1", 10)
	repo := newMemoryTaskRepo(today, monday, lastWeek, lastMonth, working)

	svc := fixedProgressService(repo, &fakeExamRepo{}, jakarta, time.Hour, now)

	stats, err := svc.DashboardStatistics(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, "Asia/Jakarta", stats.Timezone)
	require.Equal(t, 4, stats.Counts.Completed)
	require.Equal(t, 1, stats.Counts.Claimed)
	require.Equal(t, 1, stats.CompletedToday)
	require.Equal(t, 2, stats.CompletedThisWeek, "Monday's completion falls inside the current week")
	require.Equal(t, 3, stats.CompletedThisMonth)

	require.NotNil(t, stats.EfficiencySeconds)
	// (1h + 1h + 30m + 1h) / 4 completions.
	require.InDelta(t, 3150.0, *stats.EfficiencySeconds, 0.5)
}

func TestDashboardStatisticsEmptyStore(t *testing.T) {
	repo := newMemoryTaskRepo()
	svc := NewProgressService(repo, &fakeExamRepo{}, time.UTC, time.Hour, testLogger())

	stats, err := svc.DashboardStatistics(context.Background(), "g1")
	require.NoError(t, err)
	require.Equal(t, 0, stats.Counts.Pending)
	require.Equal(t, 0, stats.Counts.Claimed)
	require.Equal(t, 0, stats.Counts.Completed)
	require.Equal(t, 0, stats.CompletedToday)
	require.Nil(t, stats.EfficiencySeconds, "no completions means efficiency is unknown, not zero")
}
