package appointment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
	apperrors "github.com/acme/patient-notify/pkg/errors"
	"github.com/acme/patient-notify/pkg/logger"
)

// reminderScheduler is the single integration point between the status
// state machine and the reminder pipeline.
type reminderScheduler interface {
	Schedule(ctx context.Context, appointmentID uuid.UUID, appointmentAt *time.Time) error
	Cancel(ctx context.Context, appointmentID uuid.UUID) error
}

// Service coordinates appointment lifecycle operations.
type Service struct {
	appointments repository.AppointmentRepository
	reminderLogs repository.ReminderLogRepository
	reminders    reminderScheduler
	logger       *logger.Logger
}

// NewService builds the appointment service.
func NewService(
	appointments repository.AppointmentRepository,
	reminderLogs repository.ReminderLogRepository,
	reminders reminderScheduler,
	lg *logger.Logger,
) *Service {
	return &Service{
		appointments: appointments,
		reminderLogs: reminderLogs,
		reminders:    reminders,
		logger:       lg,
	}
}

// CreateInput encapsulates the arguments for creating an appointment.
type CreateInput struct {
	PatientID     uuid.UUID
	PatientName   string
	PatientPhone  string
	DoctorName    string
	Specialty     string
	AppointmentAt time.Time
}

func validateCreateInput(input CreateInput) error {
	if input.PatientName == "" {
		return fmt.Errorf("%w: patient name is required", apperrors.ErrValidation)
	}
	if input.PatientPhone == "" {
		return fmt.Errorf("%w: patient phone is required", apperrors.ErrValidation)
	}
	if input.AppointmentAt.IsZero() {
		return fmt.Errorf("%w: appointment time is required", apperrors.ErrValidation)
	}
	return nil
}

// Create persists a new appointment and schedules its reminders.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Appointment, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	appt := &domain.Appointment{
		ID:              uuid.New(),
		PatientID:       input.PatientID,
		PatientName:     input.PatientName,
		PatientPhone:    input.PatientPhone,
		DoctorName:      input.DoctorName,
		Specialty:       input.Specialty,
		AppointmentAt:   input.AppointmentAt,
		Status:          domain.StatusScheduled,
		StatusUpdatedAt: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.appointments.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("appointment service: persist: %w", err)
	}

	// Reminder scheduling is best-effort at creation; a substrate
	// outage must not fail the appointment itself.
	if err := s.reminders.Schedule(ctx, appt.ID, &appt.AppointmentAt); err != nil {
		s.logger.Error("appointment service: schedule reminders",
			zap.String("appointment_id", appt.ID.String()), zap.Error(err))
	}

	return appt, nil
}

// Get retrieves an appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	return s.appointments.Get(ctx, id)
}

// List returns appointments matching the filter plus the total count.
func (s *Service) List(ctx context.Context, filter repository.AppointmentFilter) ([]*domain.Appointment, int64, error) {
	return s.appointments.List(ctx, filter)
}

// Transition validates and applies a status change. Entering CONFIRMED
// or CANCELLED cancels any pending reminder jobs for the appointment.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to domain.AppointmentStatus) (*domain.Appointment, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", apperrors.ErrValidation, to)
	}

	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := domain.CanTransition(appt.Status, to); err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
	}

	now := time.Now().UTC()
	if err := s.appointments.UpdateStatus(ctx, id, to, now); err != nil {
		return nil, fmt.Errorf("appointment service: update status: %w", err)
	}

	appt.Status = to
	appt.StatusUpdatedAt = now
	appt.UpdatedAt = now

	if to.CancelsReminders() {
		// Best effort: a job already executing cannot be retracted, and
		// a substrate error must not roll back the status change.
		if err := s.reminders.Cancel(ctx, id); err != nil {
			s.logger.Error("appointment service: cancel reminders",
				zap.String("appointment_id", id.String()), zap.Error(err))
		}
	}

	return appt, nil
}

// ScheduleReminders (re)schedules reminder jobs for an appointment,
// loading its time from the store.
func (s *Service) ScheduleReminders(ctx context.Context, id uuid.UUID) error {
	return s.reminders.Schedule(ctx, id, nil)
}

// CancelReminders removes pending reminder jobs for an appointment.
func (s *Service) CancelReminders(ctx context.Context, id uuid.UUID) error {
	return s.reminders.Cancel(ctx, id)
}

// RecordReminderResponse stores the patient's reply to a reminder and
// applies the confirmation or cancellation it expresses. Replies that
// match neither leave the status untouched.
func (s *Service) RecordReminderResponse(ctx context.Context, id uuid.UUID, typ domain.ReminderType, text string) (*domain.Appointment, error) {
	if err := s.reminderLogs.MarkResponse(ctx, id, typ, text); err != nil {
		return nil, err
	}

	switch interpretResponse(text) {
	case domain.StatusConfirmed:
		return s.Transition(ctx, id, domain.StatusConfirmed)
	case domain.StatusCancelled:
		return s.Transition(ctx, id, domain.StatusCancelled)
	}
	return s.appointments.Get(ctx, id)
}

func interpretResponse(text string) domain.AppointmentStatus {
	normalized := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(normalized, "sí"), strings.HasPrefix(normalized, "si"), strings.HasPrefix(normalized, "yes"):
		return domain.StatusConfirmed
	case strings.HasPrefix(normalized, "no"):
		return domain.StatusCancelled
	}
	return ""
}
