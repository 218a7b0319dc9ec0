package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/opengrade/grading-api/internal/events"
	"github.com/opengrade/grading-api/internal/models"
	"github.com/opengrade/grading-api/internal/repository"
)

func newAbandonmentStore(t *testing.T) repository.AbandonmentRepository {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AbandonmentRecord{}))
	return repository.NewAbandonmentRepository(db)
}

func abandonEvent(taskID, graderID string) events.TaskAbandoned {
	return events.TaskAbandoned{
		TaskID:         taskID,
		ExamID:         "exam-1",
		QuestionNumber: 2,
		GraderID:       graderID,
		Reason:         "too many open tasks",
		OccurredAt:     time.Now(),
	}
}

func TestReassignmentRecordsAuditTrail(t *testing.T) {
	records := newAbandonmentStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewReassignmentService(records, client, 3, testLogger())

	svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g1"))
	svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g2"))

	listed, total, err := svc.ListAbandonments(context.Background(), repository.AbandonmentFilter{TaskID: "task-1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, listed, 2)
	require.Equal(t, "g2", listed[0].GraderID, "newest record first")
	require.Equal(t, "too many open tasks", listed[0].Reason)
}

func TestReassignmentFlagsAfterThreshold(t *testing.T) {
	records := newAbandonmentStore(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewReassignmentService(records, client, 2, testLogger())

	for i := 0; i < 2; i++ {
		svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g1"))
	}
	flagged, err := svc.FlaggedTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, flagged, "at the threshold the task is not yet flagged")

	svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g1"))
	flagged, err = svc.FlaggedTasks(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"task-1"}, flagged)

	// Other tasks keep independent counters.
	svc.HandleAbandonment(context.Background(), abandonEvent("task-2", "g1"))
	flagged, err = svc.FlaggedTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, flagged, 1)
}

func TestReassignmentCountsFromAuditTrailWithoutRedis(t *testing.T) {
	records := newAbandonmentStore(t)
	svc := NewReassignmentService(records, nil, 1, testLogger())

	svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g1"))
	svc.HandleAbandonment(context.Background(), abandonEvent("task-1", "g1"))

	// No redis means no flagged set, but handling must not fail.
	flagged, err := svc.FlaggedTasks(context.Background())
	require.NoError(t, err)
	require.Empty(t, flagged)

	_, total, err := svc.ListAbandonments(context.Background(), repository.AbandonmentFilter{TaskID: "task-1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
}
