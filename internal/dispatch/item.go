package dispatch

import (
	"github.com/google/uuid"
)

// ItemStatus enumerates the lifecycle of a queued call request.
type ItemStatus string

const (
	ItemPending    ItemStatus = "PENDING"
	ItemProcessing ItemStatus = "PROCESSING"
	ItemCompleted  ItemStatus = "COMPLETED"
	ItemFailed     ItemStatus = "FAILED"
)

// EnqueueInput describes one call request to add to the queue.
type EnqueueInput struct {
	PhoneNumber     string
	PatientID       *uuid.UUID
	AppointmentID   *uuid.UUID
	PatientName     string
	AppointmentDate string
	DoctorName      string
	Specialty       string
}

// Item is a queued call request. Items live in memory for the lifetime
// of the process and are never resurrected once terminal.
type Item struct {
	ID              uuid.UUID  `json:"id"`
	PhoneNumber     string     `json:"phone_number"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	AppointmentID   *uuid.UUID `json:"appointment_id,omitempty"`
	PatientName     string     `json:"patient_name,omitempty"`
	AppointmentDate string     `json:"appointment_date,omitempty"`
	DoctorName      string     `json:"doctor_name,omitempty"`
	Specialty       string     `json:"specialty,omitempty"`
	Status          ItemStatus `json:"status"`
	Attempts        int        `json:"attempts"`
	ConversationID  string     `json:"conversation_id,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Snapshot is a point-in-time view of the queue for observability.
type Snapshot struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Completed  int    `json:"completed"`
	Failed     int    `json:"failed"`
	Simulated  bool   `json:"simulated"`
	Items      []Item `json:"items"`
}
