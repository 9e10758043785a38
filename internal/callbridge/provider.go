package callbridge

import "context"

// Request carries the details for one outbound voice call.
type Request struct {
	PhoneNumber     string
	PatientID       string
	PatientName     string
	AppointmentDate string
	DoctorName      string
	Specialty       string
}

// Result captures the gateway's acceptance of a call.
type Result struct {
	ConversationID string
	CallSID        string
	Simulated      bool
}

// Provider abstracts the outbound voice call integration. InitiateCall
// returns a *errors.GatewayError on rejection; callers classify it via
// Temporary().
type Provider interface {
	InitiateCall(ctx context.Context, req Request) (Result, error)
}
