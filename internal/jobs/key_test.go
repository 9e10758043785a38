package jobs

import (
	"testing"

	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/domain"
)

func TestKeyRoundTrip(t *testing.T) {
	original := Key{AppointmentID: uuid.New(), Type: domain.Reminder48H}

	parsed, err := ParseKey(original.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != original {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, original)
	}
}

func TestParseKeyRejectsMalformedInput(t *testing.T) {
	cases := []string{
		"",
		"no-separator",
		"not-a-uuid:72H",
		uuid.New().String() + ":12H",
		uuid.New().String() + ":",
	}

	for _, input := range cases {
		if _, err := ParseKey(input); err == nil {
			t.Errorf("expected error for input %q", input)
		}
	}
}
