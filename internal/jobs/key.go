package jobs

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/domain"
)

// Key identifies at most one live delayed job per (appointment, reminder
// type). It replaces string concatenation so collisions and parsing bugs
// are caught at the type level.
type Key struct {
	AppointmentID uuid.UUID
	Type          domain.ReminderType
}

// String renders the key in its wire form.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.AppointmentID, k.Type)
}

// ParseKey converts the wire form back to a Key.
func ParseKey(s string) (Key, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return Key{}, fmt.Errorf("jobs: malformed key %q", s)
	}

	id, err := uuid.Parse(s[:idx])
	if err != nil {
		return Key{}, fmt.Errorf("jobs: parse appointment id in %q: %w", s, err)
	}

	typ, err := domain.ParseReminderType(s[idx+1:])
	if err != nil {
		return Key{}, fmt.Errorf("jobs: parse key %q: %w", s, err)
	}

	return Key{AppointmentID: id, Type: typ}, nil
}
