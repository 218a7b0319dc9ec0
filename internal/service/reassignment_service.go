package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opengrade/grading-api/internal/dto"
	"github.com/opengrade/grading-api/internal/events"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/observability"
	"github.com/opengrade/grading-api/internal/repository"
)

const (
	abandonCounterKeyFormat = "grading:abandons:%s"
	abandonFlaggedSetKey    = "grading:abandons:flagged"
)

// ReassignmentService reacts to abandonment events. The work queue already
// reset the task to the assignable pool; this policy keeps the audit trail,
// counts abandonments per task and flags tasks that exceed the configured
// threshold for administrator attention. Exceeding the threshold never
// blocks reassignment.
type ReassignmentService interface {
	HandleAbandonment(ctx context.Context, event events.TaskAbandoned)
	ListAbandonments(ctx context.Context, filter repository.AbandonmentFilter) ([]dto.AbandonmentResponse, int64, error)
	FlaggedTasks(ctx context.Context) ([]string, error)
}

type reassignmentService struct {
	records   repository.AbandonmentRepository
	redis     *redis.Client
	threshold int
	logger    zerolog.Logger
}

// NewReassignmentService constructs the default re-pooling policy.
func NewReassignmentService(records repository.AbandonmentRepository, redisClient *redis.Client, threshold int, logger zerolog.Logger) ReassignmentService {
	if threshold <= 0 {
		threshold = 3
	}

	return &reassignmentService{
		records:   records,
		redis:     redisClient,
		threshold: threshold,
		logger:    logger.With().Str("component", "reassignment_service").Logger(),
	}
}

func (s *reassignmentService) HandleAbandonment(ctx context.Context, event events.TaskAbandoned) {
	metadata, _ := json.Marshal(map[string]interface{}{
		"question_number": event.QuestionNumber,
		"occurred_at":     event.OccurredAt.Format(time.RFC3339),
	})

	record := models.AbandonmentRecord{
		TaskID:   event.TaskID,
		ExamID:   event.ExamID,
		GraderID: event.GraderID,
		Reason:   event.Reason,
		Metadata: metadata,
	}
	if err := s.records.Create(ctx, &record); err != nil {
		s.logger.Error().Err(err).Str("task_id", event.TaskID).Msg("failed to persist abandonment record")
	}

	count := s.incrementCounter(ctx, event.TaskID)
	if count > int64(s.threshold) {
		s.flag(ctx, event.TaskID, count)
	}
}

func (s *reassignmentService) ListAbandonments(ctx context.Context, filter repository.AbandonmentFilter) ([]dto.AbandonmentResponse, int64, error) {
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return dto.NewAbandonmentResponseSlice(records), total, nil
}

func (s *reassignmentService) FlaggedTasks(ctx context.Context) ([]string, error) {
	if s.redis == nil {
		return []string{}, nil
	}

	members, err := s.redis.SMembers(ctx, abandonFlaggedSetKey).Result()
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (s *reassignmentService) incrementCounter(ctx context.Context, taskID string) int64 {
	if s.redis != nil {
		count, err := s.redis.Incr(ctx, fmt.Sprintf(abandonCounterKeyFormat, taskID)).Result()
		if err == nil {
			return count
		}
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to increment abandonment counter")
	}

	// Fall back to the audit trail when no counter store is configured.
	count, err := s.records.CountForTask(ctx, taskID)
	if err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to count abandonments")
		return 0
	}

	return count
}

func (s *reassignmentService) flag(ctx context.Context, taskID string, count int64) {
	observability.AbandonFlagged().Inc()
	s.logger.Warn().
		Str("task_id", taskID).
		Int64("abandon_count", count).
		Int("threshold", s.threshold).
		Msg("task flagged for administrator attention after repeated abandonment")

	if s.redis == nil {
		return
	}

	if err := s.redis.SAdd(ctx, abandonFlaggedSetKey, taskID).Err(); err != nil {
		s.logger.Warn().Err(err).Str("task_id", taskID).Msg("failed to flag task")
	}
}
