package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/acme/patient-notify/internal/domain"
)

// ReminderDeadLetter records a reminder job that exhausted its retry
// budget. Dead-lettered jobs are retained for operator inspection and are
// not retried further.
type ReminderDeadLetter struct {
	AppointmentID uuid.UUID           `json:"appointment_id"`
	ReminderType  domain.ReminderType `json:"reminder_type"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error"`
	FailedAt      time.Time           `json:"failed_at"`
}

// DeadLetterPublisher publishes exhausted reminder jobs to Kafka.
type DeadLetterPublisher struct {
	writer *kafka.Writer
}

// NewDeadLetterPublisher constructs a publisher for the given topic.
func NewDeadLetterPublisher(k *Kafka, topic string) *DeadLetterPublisher {
	return &DeadLetterPublisher{writer: k.NewWriter(topic)}
}

// Publish emits a dead letter keyed by appointment id.
func (p *DeadLetterPublisher) Publish(ctx context.Context, msg ReminderDeadLetter) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dead letter publisher: marshal message: %w", err)
	}

	record := kafka.Message{
		Key:   msg.AppointmentID[:],
		Value: value,
		Time:  time.Now().UTC(),
	}

	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("dead letter publisher: write message: %w", err)
	}
	return nil
}

// Close closes the underlying writer.
func (p *DeadLetterPublisher) Close() error {
	return p.writer.Close()
}
