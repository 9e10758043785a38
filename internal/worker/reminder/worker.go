package reminder

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/config"
	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/jobs"
	"github.com/acme/patient-notify/internal/messaging"
	"github.com/acme/patient-notify/internal/queue"
	apperrors "github.com/acme/patient-notify/pkg/errors"
	"github.com/acme/patient-notify/pkg/logger"
)

// appointmentStore is the slice of the appointment repository the worker
// needs.
type appointmentStore interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	SetReminderSent(ctx context.Context, id uuid.UUID, typ domain.ReminderType, at time.Time) error
}

// logStore writes delivered-reminder log entries.
type logStore interface {
	Create(ctx context.Context, entry *domain.ReminderLogEntry) error
}

// deadLetters receives jobs that exhausted their retry budget.
type deadLetters interface {
	Publish(ctx context.Context, msg queue.ReminderDeadLetter) error
}

// Worker drains due reminder jobs and delivers them through the
// messaging gateway. Jobs may be redelivered by the substrate, so every
// step tolerates duplicate execution; the reminder log uniqueness
// constraint is what makes patient-visible sends at-most-once.
type Worker struct {
	queue        jobs.DelayedQueue
	appointments appointmentStore
	logs         logStore
	gateway      messaging.Gateway
	deadLetters  deadLetters
	logger       *logger.Logger

	retry        config.RetryConfig
	pollInterval time.Duration
	pollBatch    int

	rng   *rand.Rand
	rngMu sync.Mutex
}

// New creates a reminder worker.
func New(
	q jobs.DelayedQueue,
	appointments appointmentStore,
	logs logStore,
	gateway messaging.Gateway,
	dl deadLetters,
	retry config.RetryConfig,
	reminderCfg config.ReminderConfig,
	lg *logger.Logger,
) *Worker {
	pollInterval := reminderCfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	pollBatch := reminderCfg.PollBatch
	if pollBatch <= 0 {
		pollBatch = 50
	}
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 2 * time.Second
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 2 * time.Minute
	}

	return &Worker{
		queue:        q,
		appointments: appointments,
		logs:         logs,
		gateway:      gateway,
		deadLetters:  dl,
		logger:       lg,
		retry:        retry,
		pollInterval: pollInterval,
		pollBatch:    pollBatch,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run polls for due jobs until the context is cancelled. Each claimed
// job runs in its own goroutine; a failing job never affects siblings.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		due, err := w.queue.PopDue(ctx, time.Now().UTC(), w.pollBatch)
		if err != nil {
			if ctx.Err() != nil {
				wg.Wait()
				return ctx.Err()
			}
			w.logger.Error("reminder worker: pop due", zap.Error(err))
		}

		for _, key := range due {
			wg.Add(1)
			go func(key jobs.Key) {
				defer wg.Done()
				if err := w.ProcessJob(ctx, key); err != nil {
					w.logger.Error("reminder worker: process job",
						zap.String("job", key.String()), zap.Error(err))
				}
			}(key)
		}

		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ProcessJob executes one fired reminder job.
func (w *Worker) ProcessJob(ctx context.Context, key jobs.Key) error {
	tracer := otel.Tracer("notify.reminderworker")
	sctx, span := tracer.Start(ctx, "reminder.send", trace.WithAttributes(
		attribute.String("appointment.id", key.AppointmentID.String()),
		attribute.String("reminder.type", string(key.Type)),
	))
	defer span.End()

	appt, err := w.appointments.Get(sctx, key.AppointmentID)
	if err != nil {
		span.RecordError(err)
		if apperrors.Is(err, apperrors.ErrNotFound) {
			// The appointment vanished between scheduling and firing;
			// dead-letter so the gap is operator-visible.
			w.deadLetter(sctx, key, 0, err)
			return nil
		}
		return err
	}

	// Whether a reminder is still wanted is the scheduler's call; this
	// guard only covers the cancellation race where a job fires after
	// the appointment was resolved.
	if appt.Status == domain.StatusConfirmed || appt.Status == domain.StatusCancelled {
		w.logger.Info("reminder skipped, appointment resolved",
			zap.String("appointment_id", key.AppointmentID.String()),
			zap.String("status", string(appt.Status)),
		)
		return nil
	}

	now := time.Now().UTC()
	entry := &domain.ReminderLogEntry{
		ID:            uuid.New(),
		AppointmentID: key.AppointmentID,
		Type:          key.Type,
		SentAt:        now,
	}
	if err := w.logs.Create(sctx, entry); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			// Already delivered by an earlier execution of this job.
			return nil
		}
		span.RecordError(err)
		return err
	}

	body := messaging.RenderReminder(appt)
	if err := w.sendWithRetry(sctx, appt.PatientPhone, body); err != nil {
		span.RecordError(err)
		w.deadLetter(sctx, key, w.retry.MaxAttempts, err)
		return nil
	}

	if err := w.appointments.SetReminderSent(sctx, key.AppointmentID, key.Type, time.Now().UTC()); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

func (w *Worker) sendWithRetry(ctx context.Context, phone, body string) error {
	var lastErr error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		_, err := w.gateway.Send(ctx, phone, body)
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperrors.IsTemporary(err) || attempt == w.retry.MaxAttempts {
			return lastErr
		}

		delay := w.backoff(attempt)
		w.logger.Warn("reminder send failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", delay), zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// backoff computes the exponential delay before the next attempt.
func (w *Worker) backoff(attempt int) time.Duration {
	exponent := math.Pow(2, float64(attempt-1))
	delay := time.Duration(exponent) * w.retry.BaseDelay
	if delay > w.retry.MaxDelay {
		delay = w.retry.MaxDelay
	}

	if w.retry.Jitter > 0 {
		w.rngMu.Lock()
		jitterFraction := w.rng.Float64()*w.retry.Jitter - (w.retry.Jitter / 2)
		w.rngMu.Unlock()
		delay += time.Duration(float64(delay) * jitterFraction)
		if delay < w.retry.BaseDelay {
			delay = w.retry.BaseDelay
		}
	}

	return delay
}

func (w *Worker) deadLetter(ctx context.Context, key jobs.Key, attempts int, cause error) {
	msg := queue.ReminderDeadLetter{
		AppointmentID: key.AppointmentID,
		ReminderType:  key.Type,
		Attempts:      attempts,
		LastError:     cause.Error(),
		FailedAt:      time.Now().UTC(),
	}
	if err := w.deadLetters.Publish(ctx, msg); err != nil {
		w.logger.Error("reminder worker: publish dead letter",
			zap.String("job", key.String()), zap.Error(err))
	}
}
