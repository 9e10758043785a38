package messaging

import (
	"context"
	"fmt"

	"github.com/acme/patient-notify/internal/domain"
)

// Gateway abstracts the patient messaging integration. Send returns the
// provider-assigned message id, or a *errors.GatewayError carrying the
// transient/permanent classification.
type Gateway interface {
	Send(ctx context.Context, phoneNumber, body string) (string, error)
}

// RenderReminder builds the reminder message body for an appointment.
func RenderReminder(appt *domain.Appointment) string {
	date := appt.AppointmentAt.Format("02-01-2006 15:04")
	return fmt.Sprintf(
		"Hola %s! Recordatorio de tu cita con %s (%s) el %s. Responde SÍ para confirmar o NO para cancelar.",
		appt.PatientName, appt.DoctorName, appt.Specialty, date,
	)
}
