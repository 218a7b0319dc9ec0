package models

import "time"

// AnswerSubmission is a reference to one student's answer to one question.
// The engine stores references only; answer content lives in the external
// submission store.
type AnswerSubmission struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	ExamID         string    `gorm:"size:36;not null;index:idx_submission_exam_question" json:"exam_id"`
	QuestionNumber int       `gorm:"not null;index:idx_submission_exam_question" json:"question_number"`
	StudentID      string    `gorm:"size:64;not null" json:"student_id"`
	CreatedAt      time.Time `json:"created_at"`
}
