package models

import "time"

// TaskStatus enumerates the lifecycle states of a grading task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is waiting for its grader to start.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusClaimed indicates the grader has started working on the task.
	TaskStatusClaimed TaskStatus = "claimed"
	// TaskStatusCompleted indicates the task carries a final score. Terminal.
	TaskStatusCompleted TaskStatus = "completed"
)

// GradingTask is the unit of grading work: one student's answer to one
// question, to be scored by one grader. Tasks are never deleted; an
// abandoned task is recycled in place with its grader binding cleared, so
// a submission/question pair carries at most one task ever. The composite
// unique index makes the database enforce that, which is what serializes
// two racing assign calls targeting the same submission.
type GradingTask struct {
	ID                  string     `gorm:"primaryKey;size:36" json:"id"`
	AssignmentID        string     `gorm:"size:36;not null;index" json:"assignment_id"`
	ExamID              string     `gorm:"size:36;not null;uniqueIndex:idx_task_submission_coverage,priority:1" json:"exam_id"`
	QuestionNumber      int        `gorm:"not null;uniqueIndex:idx_task_submission_coverage,priority:2" json:"question_number"`
	SubmissionID        string     `gorm:"size:36;not null;uniqueIndex:idx_task_submission_coverage,priority:3" json:"submission_id"`
	GraderID            *string    `gorm:"size:64;index" json:"grader_id"`
	AssignedAt          *time.Time `json:"assigned_at"`
	Status              TaskStatus `gorm:"size:16;not null;index" json:"status"`
	Score               *float64   `json:"score"`
	Feedback            string     `gorm:"type:text" json:"feedback"`
	MaxScore            float64    `gorm:"not null" json:"max_score"`
	StartedAt           *time.Time `json:"started_at"`
	CompletedAt         *time.Time `json:"completed_at"`
	LastProgressSavedAt *time.Time `json:"last_progress_saved_at"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// IsTerminal reports whether the task has reached its final state.
func (t GradingTask) IsTerminal() bool {
	return t.Status == TaskStatusCompleted
}

// AssignedTo reports whether the task is currently bound to the given grader.
func (t GradingTask) AssignedTo(graderID string) bool {
	return t.GraderID != nil && *t.GraderID == graderID
}
