package events

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// TaskAbandoned is emitted whenever a grader releases a task. The
// reassignment policy consumes it; interested external systems can follow
// along on the NATS subject.
type TaskAbandoned struct {
	TaskID         string    `json:"task_id"`
	ExamID         string    `json:"exam_id"`
	QuestionNumber int       `json:"question_number"`
	GraderID       string    `json:"grader_id"`
	Reason         string    `json:"reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// AbandonHandler receives abandonment events dispatched in-process.
type AbandonHandler func(ctx context.Context, event TaskAbandoned)

// Bus fans abandonment events out to in-process subscribers synchronously
// and mirrors them onto NATS (best effort) when a connection is configured.
type Bus struct {
	nats    *nats.Conn
	subject string
	logger  zerolog.Logger

	mu       sync.RWMutex
	handlers []AbandonHandler
}

// NewBus constructs an event bus. conn may be nil for single-node setups.
func NewBus(conn *nats.Conn, subjectBase string, logger zerolog.Logger) *Bus {
	subject := ""
	if subjectBase != "" {
		subject = strings.ReplaceAll(subjectBase, ":", ".") + ".task.abandoned"
	}

	return &Bus{
		nats:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "event_bus").Logger(),
	}
}

// SubscribeTaskAbandoned registers an in-process handler.
func (b *Bus) SubscribeTaskAbandoned(handler AbandonHandler) {
	if handler == nil {
		return
	}

	b.mu.Lock()
	b.handlers = append(b.handlers, handler)
	b.mu.Unlock()
}

// PublishTaskAbandoned dispatches the event to in-process subscribers and
// mirrors it to NATS. In-process handlers run synchronously so the
// reassignment policy's bookkeeping lands before the request returns.
func (b *Bus) PublishTaskAbandoned(ctx context.Context, event TaskAbandoned) {
	b.mu.RLock()
	handlers := make([]AbandonHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}

	if b.nats == nil || b.subject == "" {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error().Err(err).Str("task_id", event.TaskID).Msg("failed to encode abandonment event")
		return
	}

	if err := b.nats.Publish(b.subject, payload); err != nil {
		b.logger.Warn().Err(err).Str("task_id", event.TaskID).Msg("failed to publish abandonment event")
	}
}
