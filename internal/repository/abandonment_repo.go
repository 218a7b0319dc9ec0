package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/models"
)

// AbandonmentFilter narrows the audit listing.
type AbandonmentFilter struct {
	TaskID   string
	ExamID   string
	GraderID string
	Page     int
	PageSize int
}

// AbandonmentRepository persists the audit trail of abandoned tasks.
type AbandonmentRepository interface {
	Create(ctx context.Context, record *models.AbandonmentRecord) error
	List(ctx context.Context, filter AbandonmentFilter) ([]models.AbandonmentRecord, int64, error)
	CountForTask(ctx context.Context, taskID string) (int64, error)
}

type abandonmentRepository struct {
	db *gorm.DB
}

// NewAbandonmentRepository instantiates a GORM-backed audit store.
func NewAbandonmentRepository(db *gorm.DB) AbandonmentRepository {
	return &abandonmentRepository{db: db}
}

func (r *abandonmentRepository) Create(ctx context.Context, record *models.AbandonmentRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *abandonmentRepository) List(ctx context.Context, filter AbandonmentFilter) ([]models.AbandonmentRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.AbandonmentRecord{})

	if filter.TaskID != "" {
		query = query.Where("task_id = ?", filter.TaskID)
	}
	if filter.ExamID != "" {
		query = query.Where("exam_id = ?", filter.ExamID)
	}
	if filter.GraderID != "" {
		query = query.Where("grader_id = ?", filter.GraderID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.PageSize > 0 {
		page := filter.Page
		if page <= 0 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var records []models.AbandonmentRecord
	if err := query.Order("created_at DESC, id DESC").Find(&records).Error; err != nil {
		return nil, 0, err
	}

	return records, total, nil
}

func (r *abandonmentRepository) CountForTask(ctx context.Context, taskID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.AbandonmentRecord{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}
