package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/dispatch"
	"github.com/acme/patient-notify/internal/domain"
)

type enqueueCallRequest struct {
	PhoneNumber     string `json:"phone_number"`
	PatientID       string `json:"patient_id,omitempty"`
	AppointmentID   string `json:"appointment_id,omitempty"`
	PatientName     string `json:"patient_name,omitempty"`
	AppointmentDate string `json:"appointment_date,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
	Specialty       string `json:"specialty,omitempty"`
}

type enqueueCallsRequest struct {
	Calls []enqueueCallRequest `json:"calls"`
}

type setConcurrencyRequest struct {
	Concurrency int `json:"concurrency"`
}

type callRecordResponse struct {
	ID              uuid.UUID               `json:"id"`
	ConversationID  string                  `json:"conversation_id"`
	CallSID         string                  `json:"call_sid,omitempty"`
	PhoneNumber     string                  `json:"phone_number"`
	AgentID         string                  `json:"agent_id,omitempty"`
	Status          domain.CallRecordStatus `json:"status"`
	PatientID       *uuid.UUID              `json:"patient_id,omitempty"`
	AppointmentID   *uuid.UUID              `json:"appointment_id,omitempty"`
	InitiatedAt     time.Time               `json:"initiated_at"`
	EndedAt         *time.Time              `json:"ended_at,omitempty"`
	DurationSeconds *int                    `json:"duration_seconds,omitempty"`
	ErrorMessage    *string                 `json:"error_message,omitempty"`
}

func (h *HandlerSet) enqueueCalls(ctx *fiber.Ctx) error {
	var req enqueueCallsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	inputs := make([]dispatch.EnqueueInput, 0, len(req.Calls))
	for _, call := range req.Calls {
		if call.PhoneNumber == "" {
			return fiber.NewError(http.StatusBadRequest, "phone_number is required for every call")
		}

		input := dispatch.EnqueueInput{
			PhoneNumber:     call.PhoneNumber,
			PatientName:     call.PatientName,
			AppointmentDate: call.AppointmentDate,
			DoctorName:      call.DoctorName,
			Specialty:       call.Specialty,
		}
		if call.PatientID != "" {
			id, err := uuid.Parse(call.PatientID)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid patient id")
			}
			input.PatientID = &id
		}
		if call.AppointmentID != "" {
			id, err := uuid.Parse(call.AppointmentID)
			if err != nil {
				return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
			}
			input.AppointmentID = &id
		}
		inputs = append(inputs, input)
	}

	queued := h.callQueue.Enqueue(inputs)

	return ctx.Status(http.StatusAccepted).JSON(fiber.Map{"queued": queued})
}

func (h *HandlerSet) queueSnapshot(ctx *fiber.Ctx) error {
	return ctx.Status(http.StatusOK).JSON(h.callQueue.Snapshot())
}

func (h *HandlerSet) clearPendingCalls(ctx *fiber.Ctx) error {
	h.callQueue.ClearPending()
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) setQueueConcurrency(ctx *fiber.Ctx) error {
	var req setConcurrencyRequest
	if err := ctx.BodyParser(&req); err != nil {
		if n, convErr := strconv.Atoi(ctx.Query("concurrency")); convErr == nil {
			req.Concurrency = n
		} else {
			return fiber.NewError(http.StatusBadRequest, "invalid request body")
		}
	}

	h.callQueue.SetConcurrencyLimit(req.Concurrency)
	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) listCallsByPhone(ctx *fiber.Ctx) error {
	phone := ctx.Query("phone")
	if phone == "" {
		return fiber.NewError(http.StatusBadRequest, "phone query parameter is required")
	}
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))

	records, err := h.callRecords.ListByPhone(ctx.Context(), phone, limit)
	if err != nil {
		return translateError(err)
	}

	resp := make([]callRecordResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, callRecordResponse{
			ID:          record.ID,
			PhoneNumber: record.PhoneNumber,
			Status:      record.Status,
			InitiatedAt: record.InitiatedAt,
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"calls": resp})
}

func (h *HandlerSet) getCallRecord(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid call id")
	}

	record, err := h.callRecords.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(callRecordResponse{
		ID:              record.ID,
		ConversationID:  record.ConversationID,
		CallSID:         record.CallSID,
		PhoneNumber:     record.PhoneNumber,
		AgentID:         record.AgentID,
		Status:          record.Status,
		PatientID:       record.PatientID,
		AppointmentID:   record.AppointmentID,
		InitiatedAt:     record.InitiatedAt,
		EndedAt:         record.EndedAt,
		DurationSeconds: record.DurationSeconds,
		ErrorMessage:    record.ErrorMessage,
	})
}
