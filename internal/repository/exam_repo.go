package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

// ExamRepository is the boundary to the exam catalog: status, question
// count and per-question scoring configuration.
type ExamRepository interface {
	GetByID(ctx context.Context, id string) (models.Exam, error)
	GetQuestion(ctx context.Context, examID string, number int) (models.ExamQuestion, error)
}

type examRepository struct {
	db *gorm.DB
}

// NewExamRepository instantiates a GORM-backed exam catalog view.
func NewExamRepository(db *gorm.DB) ExamRepository {
	return &examRepository{db: db}
}

func (r *examRepository) GetByID(ctx context.Context, id string) (models.Exam, error) {
	var exam models.Exam
	if err := r.db.WithContext(ctx).First(&exam, "id = ?", id).Error; err != nil {
		return models.Exam{}, err
	}

	return exam, nil
}

func (r *examRepository) GetQuestion(ctx context.Context, examID string, number int) (models.ExamQuestion, error) {
	var question models.ExamQuestion
	err := r.db.WithContext(ctx).
		First(&question, "exam_id = ? AND number = ?", examID, number).Error
	if err != nil {
		return models.ExamQuestion{}, err
	}

	return question, nil
}
