package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallRecordStatus enumerates lifecycle stages of an outbound call record.
type CallRecordStatus string

const (
	CallStatusInitiated CallRecordStatus = "INITIATED"
	CallStatusCompleted CallRecordStatus = "COMPLETED"
	CallStatusFailed    CallRecordStatus = "FAILED"
)

// CallRecord persists one outbound voice call attempt. Lifecycle updates
// past INITIATED arrive asynchronously from the call gateway for real
// calls; simulated calls are completed inline.
type CallRecord struct {
	ID              uuid.UUID
	ConversationID  string
	CallSID         string
	PhoneNumber     string
	AgentID         string
	Status          CallRecordStatus
	PatientID       *uuid.UUID
	AppointmentID   *uuid.UUID
	InitiatedAt     time.Time
	EndedAt         *time.Time
	DurationSeconds *int
	ErrorMessage    *string
}
