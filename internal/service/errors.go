package service

import "errors"

// Domain violations are returned to the immediate caller as sentinel errors
// and never absorbed locally; the caller owns the remedial action. Store
// failures pass through wrapped and are the only kind worth retrying.
var (
	// ErrTaskNotFound indicates the referenced task does not exist.
	ErrTaskNotFound = errors.New("grading task not found")
	// ErrAssignmentNotFound indicates the referenced assignment does not exist.
	ErrAssignmentNotFound = errors.New("grading assignment not found")
	// ErrExamNotFound indicates the referenced exam is absent from the catalog.
	ErrExamNotFound = errors.New("exam not found")
	// ErrInvalidTransition indicates the task's current state does not permit the operation.
	ErrInvalidTransition = errors.New("task state does not permit this transition")
	// ErrExamNotGradable indicates the exam is not in a status that permits grading.
	ErrExamNotGradable = errors.New("exam is not in a gradable state")
	// ErrEmptyGraderSet indicates an assignment request supplied no graders.
	ErrEmptyGraderSet = errors.New("at least one grader must be supplied")
	// ErrQuestionOutOfRange indicates the question number exceeds the exam's question count.
	ErrQuestionOutOfRange = errors.New("question number is outside the exam's question count")
	// ErrDuplicateAssignment indicates an active task already covers a targeted submission.
	ErrDuplicateAssignment = errors.New("submission is already actively assigned for this question")
	// ErrNotAssignedToGrader indicates the caller is not the task's bound grader.
	ErrNotAssignedToGrader = errors.New("task is not assigned to this grader")
	// ErrScoreOutOfRange indicates a score outside [0, max score].
	ErrScoreOutOfRange = errors.New("score is outside the allowed range")
	// ErrMissingScore indicates completion was requested without a score.
	ErrMissingScore = errors.New("a final score is required to complete a task")
	// ErrAlreadyCompleted indicates the task already carries an immutable final score.
	ErrAlreadyCompleted = errors.New("task has already been completed")
)

// ErrorKind returns the machine-checkable kind for a domain error, or
// "internal" for anything else.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, ErrAssignmentNotFound), errors.Is(err, ErrExamNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrExamNotGradable):
		return "invalid_state"
	case errors.Is(err, ErrEmptyGraderSet):
		return "empty_grader_set"
	case errors.Is(err, ErrQuestionOutOfRange):
		return "question_out_of_range"
	case errors.Is(err, ErrDuplicateAssignment):
		return "duplicate_assignment"
	case errors.Is(err, ErrNotAssignedToGrader):
		return "not_assigned_to_grader"
	case errors.Is(err, ErrScoreOutOfRange):
		return "score_out_of_range"
	case errors.Is(err, ErrMissingScore):
		return "missing_score"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	default:
		return "internal"
	}
}
