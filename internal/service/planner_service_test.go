package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
)

type plannerFixture struct {
	db      *gorm.DB
	svc     PlannerService
	tasks   repository.TaskRepository
	assigns repository.AssignmentRepository
}

func newPlannerFixture(t *testing.T) plannerFixture {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Exam{},
		&models.ExamQuestion{},
		&models.AnswerSubmission{},
		&models.GradingAssignment{},
		&models.GradingTask{},
	))

	tasks := repository.NewTaskRepository(db)
	assigns := repository.NewAssignmentRepository(db)
	validate := validator.New(validator.WithRequiredStructEnabled())
	svc := NewPlannerService(
		repository.NewExamRepository(db),
		repository.NewSubmissionRepository(db),
		tasks,
		assigns,
		validate,
		testLogger(),
	)

	return plannerFixture{db: db, svc: svc, tasks: tasks, assigns: assigns}
}

func (f plannerFixture) seedExam(t *testing.T, status models.ExamStatus, questions map[int]float64) string {
	t.Helper()
	exam := models.Exam{
		ID:            uuid.NewString(),
		Title:         "Midterm",
		Status:        status,
		QuestionCount: len(questions),
	}
	require.NoError(t, f.db.Create(&exam).Error)
	for number, maxScore := range questions {
		require.NoError(t, f.db.Create(&models.ExamQuestion{ExamID: exam.ID, Number: number, MaxScore: maxScore}).Error)
	}
	return exam.ID
}

func (f plannerFixture) seedSubmissions(t *testing.T, examID string, questionNumber, count int) []string {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		sub := models.AnswerSubmission{
			ID:             fmt.Sprintf("sub-%02d", i+1),
			ExamID:         examID,
			QuestionNumber: questionNumber,
			StudentID:      fmt.Sprintf("student-%02d", i+1),
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, f.db.Create(&sub).Error)
		ids = append(ids, sub.ID)
	}
	return ids
}

func TestPlannerAssignDistributesRoundRobin(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10})
	f.seedSubmissions(t, examID, 1, 5)

	resp, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID:         examID,
		QuestionNumber: 1,
		GraderIDs:      []string{"g1", "g2"},
	})
	require.NoError(t, err)
	require.Equal(t, 5, resp.TasksCreated)
	require.Equal(t, 0, resp.TasksRebound)
	require.Equal(t, models.AssignmentStatusPending, resp.Status)
	require.Len(t, resp.Tasks, 5)

	counts := map[string]int{}
	for _, task := range resp.Tasks {
		require.NotNil(t, task.GraderID)
		require.Equal(t, models.TaskStatusPending, task.Status)
		require.Equal(t, 10.0, task.MaxScore)
		require.NotNil(t, task.AssignedAt)
		counts[*task.GraderID]++
	}
	require.Equal(t, 3, counts["g1"])
	require.Equal(t, 2, counts["g2"])
}

func TestPlannerAssignRejectsAlreadyCoveredSubmissions(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10})
	f.seedSubmissions(t, examID, 1, 3)

	_, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g1"},
	})
	require.NoError(t, err)

	resp, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g2"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, resp.TasksCreated, "covered submissions must not get duplicate tasks")

	all, err := f.tasks.List(context.Background(), repository.TaskFilter{ExamID: examID})
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestPlannerAssignRebindsAbandonedTasks(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10})
	f.seedSubmissions(t, examID, 1, 2)

	first, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g1"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, first.TasksCreated)

	// Release one task back to the unassigned pool.
	released, err := f.tasks.UpdateState(context.Background(), first.Tasks[0].ID, models.TaskStatusPending, repository.TaskUpdate{
		Status:      models.TaskStatusPending,
		ClearGrader: true,
	})
	require.NoError(t, err)
	require.Nil(t, released.GraderID)

	second, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g2"},
	})
	require.NoError(t, err)
	require.Equal(t, 0, second.TasksCreated)
	require.Equal(t, 1, second.TasksRebound)
	require.Len(t, second.Tasks, 1)
	require.Equal(t, "g2", *second.Tasks[0].GraderID)

	// The rebound task keeps its original assignment linkage.
	require.Equal(t, first.ID, second.Tasks[0].AssignmentID)
}

func TestPlannerAssignValidatesInput(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10, 2: 5})

	_, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: nil,
	})
	require.ErrorIs(t, err, ErrEmptyGraderSet)

	_, err = f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 9, GraderIDs: []string{"g1"},
	})
	require.ErrorIs(t, err, ErrQuestionOutOfRange)

	_, err = f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: uuid.NewString(), QuestionNumber: 1, GraderIDs: []string{"g1"},
	})
	require.ErrorIs(t, err, ErrExamNotFound)
}

func TestPlannerAssignRequiresGradableExam(t *testing.T) {
	f := newPlannerFixture(t)

	for _, status := range []models.ExamStatus{models.ExamStatusDraft, models.ExamStatusFinished} {
		examID := f.seedExam(t, status, map[int]float64{1: 10})
		_, err := f.svc.Assign(context.Background(), dto.AssignRequest{
			ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g1"},
		})
		require.ErrorIs(t, err, ErrExamNotGradable, "status %s", status)
	}
}

func TestPlannerGetAssignment(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10})
	f.seedSubmissions(t, examID, 1, 2)

	created, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g1", "g2"},
	})
	require.NoError(t, err)

	fetched, err := f.svc.GetAssignment(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, fetched.ID)
	require.Equal(t, []string{"g1", "g2"}, fetched.GraderIDs)
	require.Len(t, fetched.Tasks, 2)

	_, err = f.svc.GetAssignment(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrAssignmentNotFound)
}

func TestPlannerListAssignments(t *testing.T) {
	f := newPlannerFixture(t)
	examID := f.seedExam(t, models.ExamStatusGrading, map[int]float64{1: 10, 2: 5})
	f.seedSubmissions(t, examID, 1, 2)
	f.seedSubmissions(t, examID, 2, 1)

	first, err := f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 1, GraderIDs: []string{"g1", "g2"},
	})
	require.NoError(t, err)
	_, err = f.svc.Assign(context.Background(), dto.AssignRequest{
		ExamID: examID, QuestionNumber: 2, GraderIDs: []string{"g3"},
	})
	require.NoError(t, err)

	listed, err := f.svc.ListAssignments(context.Background(), examID)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	byQuestion := make(map[int]dto.AssignmentResponse, len(listed))
	for _, assignment := range listed {
		require.Equal(t, examID, assignment.ExamID)
		require.Empty(t, assignment.Tasks)
		byQuestion[assignment.QuestionNumber] = assignment
	}
	require.Equal(t, first.ID, byQuestion[1].ID)
	require.Equal(t, []string{"g1", "g2"}, byQuestion[1].GraderIDs)
	require.Equal(t, models.AssignmentStatusPending, byQuestion[1].Status)
	require.Equal(t, []string{"g3"}, byQuestion[2].GraderIDs)

	_, err = f.svc.ListAssignments(context.Background(), uuid.NewString())
	require.ErrorIs(t, err, ErrExamNotFound)
}
