// Package activity publishes interaction events and folds them into
// per-user daily counters.
package activity

import (
	"context"
	"encoding/json"
	"time"

	"studynotion/internal/logging"
	"studynotion/internal/metrics"
	"studynotion/internal/model"
	"studynotion/internal/queue"
)

const (
	// MessageType tags interaction events on the queue.
	MessageType = "interaction"
	// QueueKey is the Redis list shared by the API and the worker.
	QueueKey = "studynotion:activity"
)

const publishTimeout = time.Second

// Event records that an interaction was saved to history. At is epoch millis.
type Event struct {
	EntryID string          `json:"entryId"`
	UserID  string          `json:"userId"`
	Type    model.EntryType `json:"type"`
	At      int64           `json:"at"`
}

// Day is the UTC calendar day of the event.
func (e Event) Day() string {
	return DayOf(e.At)
}

// DayOf formats epoch millis as a UTC YYYY-MM-DD day.
func DayOf(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.DateOnly)
}

// Publisher puts events on the queue. Failures are logged, never returned:
// activity tracking must not fail a user request.
type Publisher struct {
	q   queue.Queue
	log logging.Logger
}

func NewPublisher(q queue.Queue, log logging.Logger) *Publisher {
	return &Publisher{q: q, log: log}
}

func (p *Publisher) Publish(ctx context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		p.log.Error(ctx, "encode activity event", "error", err)
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.q.Publish(pubCtx, queue.Message{Type: MessageType, Body: body}); err != nil {
		p.log.Warn(ctx, "queue publish failed", "entry_id", e.EntryID, "error", err)
	}
}

// Consume drains q into tracker until ctx is cancelled or the queue closes.
func Consume(ctx context.Context, q queue.Queue, tracker Tracker, m *metrics.Metrics, log logging.Logger) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	log.Info(ctx, "activity consumer started")
	for msg := range messages {
		if msg.Type != MessageType {
			continue
		}
		var e Event
		if err := json.Unmarshal(msg.Body, &e); err != nil {
			log.Warn(ctx, "bad activity event", "error", err)
			continue
		}
		if err := tracker.Record(ctx, e); err != nil {
			log.Error(ctx, "record activity failed", "entry_id", e.EntryID, "error", err)
			continue
		}
		m.Interaction(string(e.Type))
	}
	log.Info(ctx, "activity consumer stopped")
	return nil
}
