package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

// ErrStaleTaskState indicates a compare-and-swap update lost against a
// concurrent transition on the same task: the row exists but its status no
// longer matches the expected one.
var ErrStaleTaskState = errors.New("task state changed concurrently")

// ErrDuplicateActiveTask indicates an active (non-recycled) task already
// covers a submission/question pair targeted by a batch insert.
var ErrDuplicateActiveTask = errors.New("active task already exists for submission and question")

// TaskFilter narrows task listings. Zero values mean "no constraint".
type TaskFilter struct {
	ExamID   string
	GraderID string
	Status   models.TaskStatus
	Page     int
	PageSize int
}

// TaskUpdate describes one state transition applied via compare-and-swap.
// Pointer fields replace the stored value; ClearGrader drops the binding.
type TaskUpdate struct {
	Status              models.TaskStatus
	GraderID            *string
	ClearGrader         bool
	AssignedAt          *time.Time
	Score               *float64
	Feedback            *string
	StartedAt           *time.Time
	CompletedAt         *time.Time
	LastProgressSavedAt *time.Time
}

// TaskRepository is the authoritative store for grading tasks. All state
// transitions go through UpdateState, which is serializable per task.
type TaskRepository interface {
	CreateBatch(ctx context.Context, tasks []models.GradingTask) error
	GetByID(ctx context.Context, id string) (models.GradingTask, error)
	List(ctx context.Context, filter TaskFilter) ([]models.GradingTask, error)
	ListForAssignment(ctx context.Context, assignmentID string) ([]models.GradingTask, error)
	ActiveSubmissionIDs(ctx context.Context, examID string, questionNumber int) (map[string]struct{}, error)
	ListUnassignedPending(ctx context.Context, examID string, questionNumber int) ([]models.GradingTask, error)
	UpdateState(ctx context.Context, id string, expected models.TaskStatus, update TaskUpdate) (models.GradingTask, error)
	InTransaction(ctx context.Context, fn func(TaskRepository) error) error
}

type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository instantiates a GORM-backed task store.
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) InTransaction(ctx context.Context, fn func(TaskRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&taskRepository{db: tx})
	})
}

// CreateBatch inserts pending tasks. The count pre-check answers the common
// sequential case; the guarantee that two racing assign calls cannot both
// cover one submission comes from the unique index on
// (exam_id, question_number, submission_id), whose violation surfaces here
// as ErrDuplicateActiveTask.
func (r *taskRepository) CreateBatch(ctx context.Context, tasks []models.GradingTask) error {
	if len(tasks) == 0 {
		return nil
	}

	examID := tasks[0].ExamID
	questionNumber := tasks[0].QuestionNumber
	submissionIDs := make([]string, 0, len(tasks))
	for _, task := range tasks {
		submissionIDs = append(submissionIDs, task.SubmissionID)
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.GradingTask{}).
		Where("exam_id = ? AND question_number = ?", examID, questionNumber).
		Where("submission_id IN ?", submissionIDs).
		Where("grader_id IS NOT NULL OR status = ?", models.TaskStatusCompleted).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicateActiveTask
	}

	if err := r.db.WithContext(ctx).Create(&tasks).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateActiveTask
		}
		return err
	}

	return nil
}

func (r *taskRepository) GetByID(ctx context.Context, id string) (models.GradingTask, error) {
	var task models.GradingTask
	if err := r.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		return models.GradingTask{}, err
	}

	return task, nil
}

func (r *taskRepository) List(ctx context.Context, filter TaskFilter) ([]models.GradingTask, error) {
	query := r.db.WithContext(ctx).Model(&models.GradingTask{})

	if filter.ExamID != "" {
		query = query.Where("exam_id = ?", filter.ExamID)
	}
	if filter.GraderID != "" {
		query = query.Where("grader_id = ?", filter.GraderID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var tasks []models.GradingTask
	// Oldest work first; the id tie-breaker keeps pagination deterministic.
	if err := query.Order("created_at ASC, id ASC").Find(&tasks).Error; err != nil {
		return nil, err
	}

	return tasks, nil
}

func (r *taskRepository) ListForAssignment(ctx context.Context, assignmentID string) ([]models.GradingTask, error) {
	var tasks []models.GradingTask
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// ActiveSubmissionIDs returns the submissions already covered for a
// question: bound to a grader or completed. Unassigned pending tasks (the
// abandoned pool) do not count as covered.
func (r *taskRepository) ActiveSubmissionIDs(ctx context.Context, examID string, questionNumber int) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.GradingTask{}).
		Where("exam_id = ? AND question_number = ?", examID, questionNumber).
		Where("grader_id IS NOT NULL OR status = ?", models.TaskStatusCompleted).
		Pluck("submission_id", &ids).Error
	if err != nil {
		return nil, err
	}

	active := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		active[id] = struct{}{}
	}

	return active, nil
}

func (r *taskRepository) ListUnassignedPending(ctx context.Context, examID string, questionNumber int) ([]models.GradingTask, error) {
	var tasks []models.GradingTask
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND question_number = ? AND status = ? AND grader_id IS NULL",
			examID, questionNumber, models.TaskStatusPending).
		Order("created_at ASC, id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}

	return tasks, nil
}

// UpdateState applies a transition conditioned on the expected current
// status. When two transitions race on one task, the UPDATE's WHERE clause
// lets exactly one win; the loser gets ErrStaleTaskState.
func (r *taskRepository) UpdateState(ctx context.Context, id string, expected models.TaskStatus, update TaskUpdate) (models.GradingTask, error) {
	fields := map[string]interface{}{
		"status": update.Status,
	}
	if update.ClearGrader {
		fields["grader_id"] = nil
		fields["assigned_at"] = nil
	} else if update.GraderID != nil {
		fields["grader_id"] = *update.GraderID
		if update.AssignedAt != nil {
			fields["assigned_at"] = *update.AssignedAt
		}
	}
	if update.Score != nil {
		fields["score"] = *update.Score
	}
	if update.Feedback != nil {
		fields["feedback"] = *update.Feedback
	}
	if update.StartedAt != nil {
		fields["started_at"] = *update.StartedAt
	}
	if update.CompletedAt != nil {
		fields["completed_at"] = *update.CompletedAt
	}
	if update.LastProgressSavedAt != nil {
		fields["last_progress_saved_at"] = *update.LastProgressSavedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.GradingTask{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if result.Error != nil {
		return models.GradingTask{}, result.Error
	}

	if result.RowsAffected == 0 {
		var exists int64
		if err := r.db.WithContext(ctx).Model(&models.GradingTask{}).Where("id = ?", id).Count(&exists).Error; err != nil {
			return models.GradingTask{}, err
		}
		if exists == 0 {
			return models.GradingTask{}, gorm.ErrRecordNotFound
		}
		return models.GradingTask{}, ErrStaleTaskState
	}

	return r.GetByID(ctx, id)
}
