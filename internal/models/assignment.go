package models

import (
	"time"

	"gorm.io/datatypes"
)

// AssignmentStatus mirrors the aggregate completion of an assignment's tasks.
type AssignmentStatus string

const (
	// AssignmentStatusPending indicates no task has been claimed yet.
	AssignmentStatusPending AssignmentStatus = "pending"
	// AssignmentStatusInProgress indicates at least one task was claimed or completed.
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	// AssignmentStatusCompleted indicates every task has been completed.
	AssignmentStatusCompleted AssignmentStatus = "completed"
)

// GradingAssignment records one administrator action binding a set of
// graders to a question's grading workload for one exam. It owns the tasks
// it created; canceling an assignment never deletes completed tasks.
type GradingAssignment struct {
	ID             string                      `gorm:"primaryKey;size:36" json:"id"`
	ExamID         string                      `gorm:"size:36;not null;index" json:"exam_id"`
	QuestionNumber int                         `gorm:"not null" json:"question_number"`
	GraderIDs      datatypes.JSONSlice[string] `json:"grader_ids"`
	Status         AssignmentStatus            `gorm:"size:16;not null" json:"status"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
	Tasks          []GradingTask               `gorm:"foreignKey:AssignmentID" json:"tasks,omitempty"`
}

// DeriveAssignmentStatus computes the assignment status from its tasks.
func DeriveAssignmentStatus(tasks []GradingTask) AssignmentStatus {
	if len(tasks) == 0 {
		return AssignmentStatusPending
	}

	completed := 0
	started := false
	for _, task := range tasks {
		switch task.Status {
		case TaskStatusCompleted:
			completed++
			started = true
		case TaskStatusClaimed:
			started = true
		}
	}

	switch {
	case completed == len(tasks):
		return AssignmentStatusCompleted
	case started:
		return AssignmentStatusInProgress
	default:
		return AssignmentStatusPending
	}
}
