package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
	appointmentsvc "github.com/acme/patient-notify/internal/service/appointment"
)

type createAppointmentRequest struct {
	PatientID     string    `json:"patient_id"`
	PatientName   string    `json:"patient_name"`
	PatientPhone  string    `json:"patient_phone"`
	DoctorName    string    `json:"doctor_name"`
	Specialty     string    `json:"specialty"`
	AppointmentAt time.Time `json:"appointment_at"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type appointmentResponse struct {
	ID              uuid.UUID                `json:"id"`
	PatientID       uuid.UUID                `json:"patient_id"`
	PatientName     string                   `json:"patient_name"`
	PatientPhone    string                   `json:"patient_phone"`
	DoctorName      string                   `json:"doctor_name"`
	Specialty       string                   `json:"specialty"`
	AppointmentAt   time.Time                `json:"appointment_at"`
	Status          domain.AppointmentStatus `json:"status"`
	StatusUpdatedAt time.Time                `json:"status_updated_at"`

	Reminder72hSent   bool       `json:"reminder_72h_sent"`
	Reminder72hSentAt *time.Time `json:"reminder_72h_sent_at,omitempty"`
	Reminder48hSent   bool       `json:"reminder_48h_sent"`
	Reminder48hSentAt *time.Time `json:"reminder_48h_sent_at,omitempty"`
	Reminder24hSent   bool       `json:"reminder_24h_sent"`
	Reminder24hSentAt *time.Time `json:"reminder_24h_sent_at,omitempty"`

	VoiceCallAttempted   bool       `json:"voice_call_attempted"`
	VoiceCallAttemptedAt *time.Time `json:"voice_call_attempted_at,omitempty"`
	NeedsHumanCall       bool       `json:"needs_human_call"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listAppointmentsResponse struct {
	Appointments []appointmentResponse `json:"appointments"`
	Total        int64                 `json:"total"`
}

type reminderLogResponse struct {
	ID               uuid.UUID           `json:"id"`
	AppointmentID    uuid.UUID           `json:"appointment_id"`
	Type             domain.ReminderType `json:"type"`
	SentAt           time.Time           `json:"sent_at"`
	ResponseReceived bool                `json:"response_received"`
	ResponseText     *string             `json:"response_text,omitempty"`
}

func (h *HandlerSet) createAppointment(ctx *fiber.Ctx) error {
	var req createAppointmentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	patientID, err := uuid.Parse(req.PatientID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid patient id")
	}

	appt, err := h.appointments.Create(ctx.Context(), appointmentsvc.CreateInput{
		PatientID:     patientID,
		PatientName:   req.PatientName,
		PatientPhone:  req.PatientPhone,
		DoctorName:    req.DoctorName,
		Specialty:     req.Specialty,
		AppointmentAt: req.AppointmentAt,
	})
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusCreated).JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) listAppointments(ctx *fiber.Ctx) error {
	limit, _ := strconv.Atoi(ctx.Query("limit", "50"))
	offset, _ := strconv.Atoi(ctx.Query("offset", "0"))

	filter := repository.AppointmentFilter{Limit: limit, Offset: offset}
	if statusStr := ctx.Query("status"); statusStr != "" {
		status := domain.AppointmentStatus(statusStr)
		if !status.Valid() {
			return fiber.NewError(http.StatusBadRequest, "invalid status filter")
		}
		filter.Status = &status
	}

	appts, total, err := h.appointments.List(ctx.Context(), filter)
	if err != nil {
		return translateError(err)
	}

	resp := listAppointmentsResponse{
		Appointments: make([]appointmentResponse, 0, len(appts)),
		Total:        total,
	}
	for _, appt := range appts {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(appt))
	}

	return ctx.Status(http.StatusOK).JSON(resp)
}

func (h *HandlerSet) getAppointment(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	appt, err := h.appointments.Get(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) updateAppointmentStatus(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	var req updateStatusRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}

	appt, err := h.appointments.Transition(ctx.Context(), id, domain.AppointmentStatus(req.Status))
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toAppointmentResponse(appt))
}

func (h *HandlerSet) scheduleReminders(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	if err := h.appointments.ScheduleReminders(ctx.Context(), id); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusAccepted)
}

func (h *HandlerSet) cancelReminders(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	if err := h.appointments.CancelReminders(ctx.Context(), id); err != nil {
		return translateError(err)
	}

	return ctx.SendStatus(http.StatusNoContent)
}

func (h *HandlerSet) listReminderLogs(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	entries, err := h.reminderLogs.ListByAppointment(ctx.Context(), id)
	if err != nil {
		return translateError(err)
	}

	resp := make([]reminderLogResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, reminderLogResponse{
			ID:               entry.ID,
			AppointmentID:    entry.AppointmentID,
			Type:             entry.Type,
			SentAt:           entry.SentAt,
			ResponseReceived: entry.ResponseReceived,
			ResponseText:     entry.ResponseText,
		})
	}

	return ctx.Status(http.StatusOK).JSON(fiber.Map{"reminders": resp})
}

type reminderResponseRequest struct {
	Text string `json:"text"`
}

func (h *HandlerSet) recordReminderResponse(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid appointment id")
	}

	typ, err := domain.ParseReminderType(ctx.Params("type"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid reminder type")
	}

	var req reminderResponseRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if req.Text == "" {
		return fiber.NewError(http.StatusBadRequest, "text is required")
	}

	appt, err := h.appointments.RecordReminderResponse(ctx.Context(), id, typ, req.Text)
	if err != nil {
		return translateError(err)
	}

	return ctx.Status(http.StatusOK).JSON(toAppointmentResponse(appt))
}

func toAppointmentResponse(appt *domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:              appt.ID,
		PatientID:       appt.PatientID,
		PatientName:     appt.PatientName,
		PatientPhone:    appt.PatientPhone,
		DoctorName:      appt.DoctorName,
		Specialty:       appt.Specialty,
		AppointmentAt:   appt.AppointmentAt,
		Status:          appt.Status,
		StatusUpdatedAt: appt.StatusUpdatedAt,

		Reminder72hSent:   appt.Reminder72hSent,
		Reminder72hSentAt: appt.Reminder72hSentAt,
		Reminder48hSent:   appt.Reminder48hSent,
		Reminder48hSentAt: appt.Reminder48hSentAt,
		Reminder24hSent:   appt.Reminder24hSent,
		Reminder24hSentAt: appt.Reminder24hSentAt,

		VoiceCallAttempted:   appt.VoiceCallAttempted,
		VoiceCallAttemptedAt: appt.VoiceCallAttemptedAt,
		NeedsHumanCall:       appt.NeedsHumanCall,

		CreatedAt: appt.CreatedAt,
		UpdatedAt: appt.UpdatedAt,
	}
}
