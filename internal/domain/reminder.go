package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReminderType identifies the fixed lead time of a reminder.
type ReminderType string

const (
	Reminder72H ReminderType = "72H"
	Reminder48H ReminderType = "48H"
	Reminder24H ReminderType = "24H"
)

// ReminderTypes lists every reminder type in scheduling order.
var ReminderTypes = []ReminderType{Reminder72H, Reminder48H, Reminder24H}

// Offset returns the lead time before the appointment at which the
// reminder is due.
func (t ReminderType) Offset() time.Duration {
	switch t {
	case Reminder72H:
		return 72 * time.Hour
	case Reminder48H:
		return 48 * time.Hour
	case Reminder24H:
		return 24 * time.Hour
	}
	return 0
}

// ParseReminderType converts a wire string to a ReminderType.
func ParseReminderType(s string) (ReminderType, error) {
	switch ReminderType(s) {
	case Reminder72H, Reminder48H, Reminder24H:
		return ReminderType(s), nil
	}
	return "", fmt.Errorf("unknown reminder type %q", s)
}

// ReminderLogEntry records a delivered reminder. The store enforces a
// unique constraint on (AppointmentID, Type), which is the at-most-once
// guarantee for patient-visible sends.
type ReminderLogEntry struct {
	ID               uuid.UUID
	AppointmentID    uuid.UUID
	Type             ReminderType
	SentAt           time.Time
	ResponseReceived bool
	ResponseText     *string
}
