package models

import "time"

// ExamStatus enumerates the catalog states an exam moves through.
type ExamStatus string

const (
	// ExamStatusDraft indicates the exam is still being prepared.
	ExamStatusDraft ExamStatus = "draft"
	// ExamStatusGrading indicates answers are in and grading may be assigned.
	ExamStatusGrading ExamStatus = "grading"
	// ExamStatusFinished indicates grading is closed.
	ExamStatusFinished ExamStatus = "finished"
)

// Exam is the catalog view of one exam: status, question count and the
// per-question scoring configuration consulted at assignment time.
type Exam struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Status        ExamStatus     `gorm:"size:16;not null" json:"status"`
	QuestionCount int            `gorm:"not null" json:"question_count"`
	Questions     []ExamQuestion `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsGradable reports whether grading work may be assigned for the exam.
func (e Exam) IsGradable() bool {
	return e.Status == ExamStatusGrading
}

// ExamQuestion holds the scoring configuration for one question of an exam.
// The max score is copied into each task at assignment time so later edits
// here never invalidate in-flight tasks.
type ExamQuestion struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	ExamID   string  `gorm:"size:36;not null;uniqueIndex:idx_exam_question_number" json:"exam_id"`
	Number   int     `gorm:"not null;uniqueIndex:idx_exam_question_number" json:"number"`
	MaxScore float64 `gorm:"not null" json:"max_score"`
}
