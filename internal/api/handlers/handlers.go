package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/app"
	"github.com/acme/patient-notify/internal/dispatch"
	"github.com/acme/patient-notify/internal/repository"
	appointmentsvc "github.com/acme/patient-notify/internal/service/appointment"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	container    *app.Container
	appointments *appointmentsvc.Service
	callQueue    *dispatch.Queue
	callRecords  repository.CallRecordStore
	reminderLogs repository.ReminderLogRepository
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	return &HandlerSet{
		container:    container,
		appointments: container.Services().Appointment,
		callQueue:    container.Queues().CallDispatch,
		callRecords:  container.Repositories().CallRecords,
		reminderLogs: container.Repositories().ReminderLogs,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	appointments := v1.Group("/appointments")
	appointments.Post("/", h.createAppointment)
	appointments.Get("/", h.listAppointments)
	appointments.Get("/:id", h.getAppointment)
	appointments.Patch("/:id/status", h.updateAppointmentStatus)
	appointments.Post("/:id/reminders", h.scheduleReminders)
	appointments.Delete("/:id/reminders", h.cancelReminders)
	appointments.Get("/:id/reminders", h.listReminderLogs)
	appointments.Post("/:id/reminders/:type/response", h.recordReminderResponse)

	calls := v1.Group("/calls")
	calls.Post("/queue", h.enqueueCalls)
	calls.Get("/", h.listCallsByPhone)
	calls.Get("/queue", h.queueSnapshot)
	calls.Delete("/queue", h.clearPendingCalls)
	calls.Put("/queue/concurrency", h.setQueueConcurrency)
	calls.Get("/:id", h.getCallRecord)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.container.Logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if err := h.container.Postgres.DB().PingContext(healthCtx); err != nil {
		errs["postgres"] = err.Error()
	}

	if err := h.container.Redis.Inner().Ping(healthCtx).Err(); err != nil {
		errs["redis"] = err.Error()
	}

	if err := h.container.Scylla.Session().Query("SELECT now() FROM system.local").WithContext(healthCtx).Exec(); err != nil {
		errs["scylla"] = err.Error()
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
