package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/domain"
	apperrors "github.com/acme/patient-notify/pkg/errors"
)

var (
	// ErrNotFound indicates the entity was not located.
	ErrNotFound = apperrors.ErrNotFound
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = apperrors.ErrConflict
)

// AppointmentFilter narrows appointment listings.
type AppointmentFilter struct {
	Status *domain.AppointmentStatus
	Limit  int
	Offset int
}

// AppointmentRepository manages appointment persistence. Flag setters are
// single-statement updates so concurrent reminder and call-dispatch writes
// cannot clobber each other.
type AppointmentRepository interface {
	Create(ctx context.Context, appt *domain.Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error)
	List(ctx context.Context, filter AppointmentFilter) ([]*domain.Appointment, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) error
	SetReminderSent(ctx context.Context, id uuid.UUID, typ domain.ReminderType, at time.Time) error
	SetCallAttempted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkNeedsHuman(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ReminderLogRepository stores delivered-reminder log entries. Create
// returns ErrConflict when an entry for (appointment, type) already
// exists; callers treat that as already delivered.
type ReminderLogRepository interface {
	Create(ctx context.Context, entry *domain.ReminderLogEntry) error
	MarkResponse(ctx context.Context, appointmentID uuid.UUID, typ domain.ReminderType, text string) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]domain.ReminderLogEntry, error)
}

// CallRecordStore persists outbound call records.
type CallRecordStore interface {
	Create(ctx context.Context, record *domain.CallRecord) error
	Get(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error)
	SetConversation(ctx context.Context, id uuid.UUID, conversationID, callSID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, conversationID string, durationSeconds int, endedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, endedAt time.Time) error
	ListByPhone(ctx context.Context, phoneNumber string, limit int) ([]domain.CallRecord, error)
}
