package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus enumerates lifecycle states of an appointment.
type AppointmentStatus string

const (
	StatusScheduled    AppointmentStatus = "SCHEDULED"
	StatusConfirmed    AppointmentStatus = "CONFIRMED"
	StatusRescheduled  AppointmentStatus = "RESCHEDULED"
	StatusCancelled    AppointmentStatus = "CANCELLED"
	StatusAwaitingCall AppointmentStatus = "AWAITING_CALL"
	StatusNoShow       AppointmentStatus = "NO_SHOW"
	StatusNeedsContact AppointmentStatus = "NEEDS_CONTACT"
)

// Statuses lists every valid appointment status.
var Statuses = []AppointmentStatus{
	StatusScheduled,
	StatusConfirmed,
	StatusRescheduled,
	StatusCancelled,
	StatusAwaitingCall,
	StatusNoShow,
	StatusNeedsContact,
}

// Valid reports whether s is a known status.
func (s AppointmentStatus) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// forbiddenTransitions maps a current status to the statuses it may not
// move to. Pairs absent from this table are permitted.
var forbiddenTransitions = map[AppointmentStatus][]AppointmentStatus{
	StatusConfirmed: {StatusScheduled},
	StatusCancelled: {StatusConfirmed, StatusRescheduled},
	StatusNoShow:    {StatusConfirmed, StatusRescheduled},
}

// TransitionError reports a rejected status transition.
type TransitionError struct {
	From AppointmentStatus
	To   AppointmentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

// CanTransition validates a status change against the forbidden table.
func CanTransition(from, to AppointmentStatus) error {
	for _, blocked := range forbiddenTransitions[from] {
		if to == blocked {
			return &TransitionError{From: from, To: to}
		}
	}
	return nil
}

// CancelsReminders reports whether entering the status cancels any
// pending reminder jobs for the appointment.
func (s AppointmentStatus) CancelsReminders() bool {
	return s == StatusConfirmed || s == StatusCancelled
}

// Appointment models a scheduled patient visit.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	PatientName     string
	PatientPhone    string
	DoctorName      string
	Specialty       string
	AppointmentAt   time.Time
	Status          AppointmentStatus
	StatusUpdatedAt time.Time

	Reminder72hSent   bool
	Reminder72hSentAt *time.Time
	Reminder48hSent   bool
	Reminder48hSentAt *time.Time
	Reminder24hSent   bool
	Reminder24hSentAt *time.Time

	VoiceCallAttempted   bool
	VoiceCallAttemptedAt *time.Time
	NeedsHumanCall       bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
