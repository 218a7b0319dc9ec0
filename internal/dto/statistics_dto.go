package dto

// GraderProgress is the per-grader slice of an exam's grading progress.
type GraderProgress struct {
	GraderID  string  `json:"grader_id"`
	Total     int     `json:"total"`
	Claimed   int     `json:"claimed"`
	Completed int     `json:"completed"`
	Percent   float64 `json:"percent"`
}

// ExamProgressResponse summarizes how far an exam's grading has come.
// EstimatedSecondsLeft is absent when the trailing window saw no
// completions ("unknown", not an error).
type ExamProgressResponse struct {
	ExamID                string           `json:"exam_id"`
	QuestionsUnderGrading int              `json:"questions_under_grading"`
	TotalTasks            int              `json:"total_tasks"`
	CompletedTasks        int              `json:"completed_tasks"`
	Percent               float64          `json:"percent"`
	Graders               []GraderProgress `json:"graders"`
	CompletedLastWindow   int              `json:"completed_last_window"`
	EstimatedSecondsLeft  *int64           `json:"estimated_seconds_left,omitempty"`
}

// StatusCounts breaks tasks down by lifecycle state.
type StatusCounts struct {
	Pending   int `json:"pending"`
	Claimed   int `json:"claimed"`
	Completed int `json:"completed"`
}

// GradingStatisticsResponse is the dashboard view over the task store.
// EfficiencySeconds (mean completion time) is absent when nothing has been
// completed in scope.
type GradingStatisticsResponse struct {
	Counts             StatusCounts `json:"counts"`
	CompletedToday     int          `json:"completed_today"`
	CompletedThisWeek  int          `json:"completed_this_week"`
	CompletedThisMonth int          `json:"completed_this_month"`
	Timezone           string       `json:"timezone"`
	EfficiencySeconds  *float64     `json:"efficiency_seconds,omitempty"`
}
