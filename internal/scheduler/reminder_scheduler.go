package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/jobs"
	"github.com/acme/patient-notify/pkg/logger"
)

// appointmentGetter is the slice of the appointment repository the
// scheduler needs, kept narrow so tests can fake it.
type appointmentGetter interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
}

// ReminderScheduler enqueues and removes delayed reminder jobs keyed by
// (appointment, reminder type).
type ReminderScheduler struct {
	queue        jobs.DelayedQueue
	appointments appointmentGetter
	logger       *logger.Logger
	now          func() time.Time
}

// New constructs a reminder scheduler.
func New(queue jobs.DelayedQueue, appointments appointmentGetter, lg *logger.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		queue:        queue,
		appointments: appointments,
		logger:       lg,
		now:          time.Now,
	}
}

// Schedule enqueues one delayed job per reminder offset that has not yet
// passed. When appointmentAt is nil the appointment is loaded from the
// store; a missing appointment surfaces as ErrNotFound. Re-invoking for
// an appointment whose jobs exist replaces them rather than duplicating,
// since the substrate keys jobs by their composite key.
func (s *ReminderScheduler) Schedule(ctx context.Context, appointmentID uuid.UUID, appointmentAt *time.Time) error {
	at := appointmentAt
	if at == nil {
		appt, err := s.appointments.Get(ctx, appointmentID)
		if err != nil {
			return err
		}
		at = &appt.AppointmentAt
	}

	now := s.now()
	for _, typ := range domain.ReminderTypes {
		fireAt := at.Add(-typ.Offset())
		if !fireAt.After(now) {
			// Offset already passed; never enqueue with a non-positive delay.
			continue
		}

		key := jobs.Key{AppointmentID: appointmentID, Type: typ}
		if err := s.queue.Enqueue(ctx, key, fireAt); err != nil {
			return err
		}
		s.logger.Debug("reminder scheduled",
			zap.String("appointment_id", appointmentID.String()),
			zap.String("reminder_type", string(typ)),
			zap.Time("fire_at", fireAt),
		)
	}

	return nil
}

// Cancel removes any pending jobs for the appointment. Removing a key
// that does not exist is a no-op, so Cancel is safe to call repeatedly.
// A job already claimed by the worker cannot be retracted; the reminder
// log uniqueness constraint blocks duplicate sends in that race.
func (s *ReminderScheduler) Cancel(ctx context.Context, appointmentID uuid.UUID) error {
	for _, typ := range domain.ReminderTypes {
		key := jobs.Key{AppointmentID: appointmentID, Type: typ}
		if err := s.queue.Remove(ctx, key); err != nil {
			return err
		}
	}

	s.logger.Debug("reminders cancelled", zap.String("appointment_id", appointmentID.String()))
	return nil
}
