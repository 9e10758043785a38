package callbridge

import (
	"context"

	"github.com/go-resty/resty/v2"

	"github.com/acme/patient-notify/internal/config"
	apperrors "github.com/acme/patient-notify/pkg/errors"
)

// ElevenLabsProvider initiates conversational calls through an
// ElevenLabs-style outbound-call API.
type ElevenLabsProvider struct {
	client        *resty.Client
	agentID       string
	phoneNumberID string
}

// NewElevenLabsProvider constructs the provider from config.
func NewElevenLabsProvider(cfg config.CallBridgeConfig) *ElevenLabsProvider {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.RequestTimeout).
		SetHeader("xi-api-key", cfg.APIKey)

	return &ElevenLabsProvider{
		client:        client,
		agentID:       cfg.AgentID,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

type outboundCallRequest struct {
	AgentID            string         `json:"agent_id"`
	AgentPhoneNumberID string         `json:"agent_phone_number_id"`
	ToNumber           string         `json:"to_number"`
	InitiationData     initiationData `json:"conversation_initiation_client_data"`
}

type initiationData struct {
	DynamicVariables map[string]string `json:"dynamic_variables"`
	UserID           string            `json:"user_id,omitempty"`
	SourceInfo       string            `json:"source_info"`
}

type outboundCallResponse struct {
	ConversationID string `json:"conversation_id"`
	CallSID        string `json:"call_sid"`
}

// InitiateCall asks the gateway to place the call and returns the
// assigned conversation id.
func (p *ElevenLabsProvider) InitiateCall(ctx context.Context, req Request) (Result, error) {
	payload := outboundCallRequest{
		AgentID:            p.agentID,
		AgentPhoneNumberID: p.phoneNumberID,
		ToNumber:           req.PhoneNumber,
		InitiationData: initiationData{
			DynamicVariables: map[string]string{
				"patient_name":     orDefault(req.PatientName, "Paciente"),
				"appointment_date": orDefault(req.AppointmentDate, "su próxima cita"),
				"doctor_name":      orDefault(req.DoctorName, "su médico"),
				"specialty":        orDefault(req.Specialty, "consulta médica"),
			},
			UserID:     req.PatientID,
			SourceInfo: "patient_notify_queue",
		},
	}

	var result outboundCallResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/v1/convai/twilio/outbound-call")
	if err != nil {
		return Result{}, &apperrors.GatewayError{Message: err.Error()}
	}

	if resp.IsError() {
		return Result{}, &apperrors.GatewayError{
			StatusCode: resp.StatusCode(),
			Message:    string(resp.Body()),
		}
	}

	return Result{ConversationID: result.ConversationID, CallSID: result.CallSID}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
