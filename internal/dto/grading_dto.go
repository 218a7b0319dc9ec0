package dto

import (
	"time"

	"github.com/opengrade/grading-api/internal/models"
)

// AssignRequest is the administrator payload binding graders to one
// question's grading workload.
type AssignRequest struct {
	ExamID         string   `json:"exam_id" validate:"required"`
	QuestionNumber int      `json:"question_number" validate:"required,min=1"`
	GraderIDs      []string `json:"grader_ids" validate:"omitempty,dive,required"`
}

// SaveProgressRequest updates the working score/feedback of a claimed task.
type SaveProgressRequest struct {
	Score    *float64 `json:"score" validate:"omitempty,min=0"`
	Feedback *string  `json:"feedback"`
}

// CompleteRequest finalizes a task with its score.
type CompleteRequest struct {
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

// AbandonRequest releases a task back to the assignable pool.
type AbandonRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// TaskResponse is the serialized representation of a grading task.
type TaskResponse struct {
	ID                  string            `json:"id"`
	AssignmentID        string            `json:"assignment_id"`
	ExamID              string            `json:"exam_id"`
	QuestionNumber      int               `json:"question_number"`
	SubmissionID        string            `json:"submission_id"`
	GraderID            *string           `json:"grader_id"`
	Status              models.TaskStatus `json:"status"`
	Score               *float64          `json:"score"`
	Feedback            string            `json:"feedback,omitempty"`
	MaxScore            float64           `json:"max_score"`
	AssignedAt          *time.Time        `json:"assigned_at,omitempty"`
	StartedAt           *time.Time        `json:"started_at,omitempty"`
	CompletedAt         *time.Time        `json:"completed_at,omitempty"`
	LastProgressSavedAt *time.Time        `json:"last_progress_saved_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewTaskResponse converts a model into a DTO.
func NewTaskResponse(task models.GradingTask) TaskResponse {
	return TaskResponse{
		ID:                  task.ID,
		AssignmentID:        task.AssignmentID,
		ExamID:              task.ExamID,
		QuestionNumber:      task.QuestionNumber,
		SubmissionID:        task.SubmissionID,
		GraderID:            task.GraderID,
		Status:              task.Status,
		Score:               task.Score,
		Feedback:            task.Feedback,
		MaxScore:            task.MaxScore,
		AssignedAt:          task.AssignedAt,
		StartedAt:           task.StartedAt,
		CompletedAt:         task.CompletedAt,
		LastProgressSavedAt: task.LastProgressSavedAt,
		CreatedAt:           task.CreatedAt,
		UpdatedAt:           task.UpdatedAt,
	}
}

// NewTaskResponseSlice converts a slice of models into DTOs.
func NewTaskResponseSlice(tasks []models.GradingTask) []TaskResponse {
	responses := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		responses = append(responses, NewTaskResponse(task))
	}

	return responses
}

// AssignmentResponse is the serialized representation of an assignment.
type AssignmentResponse struct {
	ID             string                  `json:"id"`
	ExamID         string                  `json:"exam_id"`
	QuestionNumber int                     `json:"question_number"`
	GraderIDs      []string                `json:"grader_ids"`
	Status         models.AssignmentStatus `json:"status"`
	TasksCreated   int                     `json:"tasks_created"`
	TasksRebound   int                     `json:"tasks_rebound"`
	Tasks          []TaskResponse          `json:"tasks,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
}

// AbandonmentResponse is one audit row of the abandonment history.
type AbandonmentResponse struct {
	ID        uint      `json:"id"`
	TaskID    string    `json:"task_id"`
	ExamID    string    `json:"exam_id"`
	GraderID  string    `json:"grader_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAbandonmentResponseSlice converts audit rows into DTOs.
func NewAbandonmentResponseSlice(records []models.AbandonmentRecord) []AbandonmentResponse {
	responses := make([]AbandonmentResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, AbandonmentResponse{
			ID:        record.ID,
			TaskID:    record.TaskID,
			ExamID:    record.ExamID,
			GraderID:  record.GraderID,
			Reason:    record.Reason,
			CreatedAt: record.CreatedAt,
		})
	}

	return responses
}
