package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

// AssignmentRepository persists the planning records grouping tasks created
// by one assignment action.
type AssignmentRepository interface {
	Create(ctx context.Context, assignment *models.GradingAssignment) error
	GetByID(ctx context.Context, id string) (models.GradingAssignment, error)
	ListForExam(ctx context.Context, examID string) ([]models.GradingAssignment, error)
	UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.GradingAssignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *assignmentRepository) GetByID(ctx context.Context, id string) (models.GradingAssignment, error) {
	var assignment models.GradingAssignment
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		First(&assignment, "id = ?", id).Error
	if err != nil {
		return models.GradingAssignment{}, err
	}

	return assignment, nil
}

func (r *assignmentRepository) ListForExam(ctx context.Context, examID string) ([]models.GradingAssignment, error) {
	var assignments []models.GradingAssignment
	err := r.db.WithContext(ctx).
		Preload("Tasks", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Where("exam_id = ?", examID).
		Order("created_at ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}

	return assignments, nil
}

func (r *assignmentRepository) UpdateStatus(ctx context.Context, id string, status models.AssignmentStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.GradingAssignment{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}
