// Package receipts moves provider status callbacks through the redis
// queue into recipient records. The webhook endpoint publishes, the
// dispatcher binary consumes; a webhook burst never blocks on the
// database.
package receipts

import (
	"context"
	"encoding/json"
	"time"

	"github.com/azrulhaziq/campaign-gateway/internal/model"
	"github.com/azrulhaziq/campaign-gateway/internal/queue"
	"github.com/azrulhaziq/campaign-gateway/internal/repository"
	"github.com/azrulhaziq/campaign-gateway/pkg/logger"
	"github.com/pkg/errors"
)

// Receipt is the queue payload for one provider status callback.
type Receipt struct {
	RecipientID int64                  `json:"recipient_id"`
	Type        model.EventType        `json:"type"`
	Timestamp   time.Time              `json:"timestamp,omitempty"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
}

func (r Receipt) Validate() error {
	if r.RecipientID == 0 {
		return errors.New("recipient_id is required")
	}
	switch r.Type {
	case model.EventDelivered, model.EventRead, model.EventReplied, model.EventOptOut, model.EventError:
		return nil
	default:
		return errors.Errorf("unsupported receipt type %q", r.Type)
	}
}

// EventRecorder applies one event to a recipient. Satisfied by
// services.EventService.
type EventRecorder interface {
	Record(ctx context.Context, recipientID int64, eventType model.EventType, ts time.Time, payload map[string]interface{}) error
}

// Publisher enqueues receipts for asynchronous processing.
type Publisher struct {
	queue *queue.Queue
}

func NewPublisher(q *queue.Queue) *Publisher {
	return &Publisher{queue: q}
}

func (p *Publisher) Publish(ctx context.Context, r Receipt) (string, error) {
	if err := r.Validate(); err != nil {
		return "", err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return p.queue.PublishJSON(ctx, r)
}

// Processor drains the receipt queue into the event pipeline.
type Processor struct {
	events EventRecorder
}

func NewProcessor(events EventRecorder) *Processor {
	return &Processor{events: events}
}

// Process handles one queue message. Malformed payloads are returned
// as errors so the queue retries and eventually dead-letters them;
// recipient-not-found is acked since a retry cannot fix it.
func (p *Processor) Process(ctx context.Context, msg *queue.Message) error {
	var receipt Receipt
	if err := json.Unmarshal(msg.Data, &receipt); err != nil {
		logger.Error("malformed receipt", "message_id", msg.ID, "error", err)
		return err
	}
	if err := receipt.Validate(); err != nil {
		logger.Error("invalid receipt", "message_id", msg.ID, "error", err)
		return err
	}

	ts := receipt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	if err := p.events.Record(ctx, receipt.RecipientID, receipt.Type, ts, receipt.Payload); err != nil {
		if errors.Is(err, repository.ErrRecipientNotFound) {
			logger.Warn("receipt for unknown recipient, dropping",
				"message_id", msg.ID, "recipient_id", receipt.RecipientID)
			return nil
		}
		logger.Error("record receipt failed",
			"message_id", msg.ID,
			"recipient_id", receipt.RecipientID,
			"type", receipt.Type,
			"error", err)
		return err
	}
	return nil
}
