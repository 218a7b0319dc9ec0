package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

// SubmissionRepository is the boundary to the submission store. The engine
// only reads references; answer content lives elsewhere.
type SubmissionRepository interface {
	ListForQuestion(ctx context.Context, examID string, questionNumber int) ([]models.AnswerSubmission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates a GORM-backed submission reference store.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) ListForQuestion(ctx context.Context, examID string, questionNumber int) ([]models.AnswerSubmission, error) {
	var submissions []models.AnswerSubmission
	err := r.db.WithContext(ctx).
		Where("exam_id = ? AND question_number = ?", examID, questionNumber).
		Order("created_at ASC, id ASC").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}

	return submissions, nil
}
