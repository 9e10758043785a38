package domain

import (
	"testing"
	"time"
)

func TestReminderTypeOffsets(t *testing.T) {
	expected := map[ReminderType]time.Duration{
		Reminder72H: 72 * time.Hour,
		Reminder48H: 48 * time.Hour,
		Reminder24H: 24 * time.Hour,
	}

	for typ, want := range expected {
		if got := typ.Offset(); got != want {
			t.Errorf("offset for %s: got %v, want %v", typ, got, want)
		}
	}
}

func TestParseReminderType(t *testing.T) {
	for _, typ := range ReminderTypes {
		parsed, err := ParseReminderType(string(typ))
		if err != nil {
			t.Fatalf("unexpected error parsing %s: %v", typ, err)
		}
		if parsed != typ {
			t.Fatalf("parsed %s, want %s", parsed, typ)
		}
	}

	if _, err := ParseReminderType("12H"); err == nil {
		t.Fatal("expected error for unknown reminder type")
	}
}
