package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
)

// AppointmentRepository implements repository.AppointmentRepository using
// PostgreSQL.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs a new repository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts a new appointment.
func (r *AppointmentRepository) Create(ctx context.Context, appt *domain.Appointment) error {
	q := `INSERT INTO appointments (
		id, patient_id, patient_name, patient_phone, doctor_name, specialty,
		appointment_at, status, status_updated_at,
		reminder_72h_sent, reminder_48h_sent, reminder_24h_sent,
		voice_call_attempted, needs_human_call, created_at, updated_at
	) VALUES (
		:id, :patient_id, :patient_name, :patient_phone, :doctor_name, :specialty,
		:appointment_at, :status, :status_updated_at,
		:reminder_72h_sent, :reminder_48h_sent, :reminder_24h_sent,
		:voice_call_attempted, :needs_human_call, :created_at, :updated_at
	)`

	params := map[string]any{
		"id":                   appt.ID,
		"patient_id":           appt.PatientID,
		"patient_name":         appt.PatientName,
		"patient_phone":        appt.PatientPhone,
		"doctor_name":          appt.DoctorName,
		"specialty":            appt.Specialty,
		"appointment_at":       appt.AppointmentAt,
		"status":               appt.Status,
		"status_updated_at":    appt.StatusUpdatedAt,
		"reminder_72h_sent":    appt.Reminder72hSent,
		"reminder_48h_sent":    appt.Reminder48hSent,
		"reminder_24h_sent":    appt.Reminder24hSent,
		"voice_call_attempted": appt.VoiceCallAttempted,
		"needs_human_call":     appt.NeedsHumanCall,
		"created_at":           appt.CreatedAt,
		"updated_at":           appt.UpdatedAt,
	}

	if _, err := r.db.NamedExecContext(ctx, q, params); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("appointment repo: insert: %w", err)
	}

	return nil
}

// Get fetches an appointment by id.
func (r *AppointmentRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Appointment, error) {
	q := selectColumns + ` FROM appointments WHERE id = $1`

	row := r.db.QueryRowxContext(ctx, q, id)
	var record appointmentRecord
	if err := row.StructScan(&record); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("appointment repo: get: %w", err)
	}

	appt := record.toDomain()
	return &appt, nil
}

// List returns appointments matching the filter plus the total count.
func (r *AppointmentRepository) List(ctx context.Context, filter repository.AppointmentFilter) ([]*domain.Appointment, int64, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	where := ""
	args := []any{}
	if filter.Status != nil {
		where = ` WHERE status = $1`
		args = append(args, *filter.Status)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT count(*) FROM appointments`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("appointment repo: count: %w", err)
	}

	q := fmt.Sprintf("%s FROM appointments%s ORDER BY appointment_at ASC LIMIT %d OFFSET %d",
		selectColumns, where, limit, filter.Offset)

	rows, err := r.db.QueryxContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("appointment repo: list: %w", err)
	}
	defer rows.Close()

	appointments := make([]*domain.Appointment, 0, limit)
	for rows.Next() {
		var record appointmentRecord
		if err := rows.StructScan(&record); err != nil {
			return nil, 0, fmt.Errorf("appointment repo: scan: %w", err)
		}
		appt := record.toDomain()
		appointments = append(appointments, &appt)
	}

	return appointments, total, rows.Err()
}

// UpdateStatus updates the status and its change timestamp.
func (r *AppointmentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) error {
	q := `UPDATE appointments SET status = $1, status_updated_at = $2, updated_at = $2 WHERE id = $3`
	return r.execExpectingRow(ctx, "update status", q, status, at, id)
}

// SetReminderSent flips the sent flag for one reminder type. Flags only
// move false to true.
func (r *AppointmentRepository) SetReminderSent(ctx context.Context, id uuid.UUID, typ domain.ReminderType, at time.Time) error {
	var flagCol, atCol string
	switch typ {
	case domain.Reminder72H:
		flagCol, atCol = "reminder_72h_sent", "reminder_72h_sent_at"
	case domain.Reminder48H:
		flagCol, atCol = "reminder_48h_sent", "reminder_48h_sent_at"
	case domain.Reminder24H:
		flagCol, atCol = "reminder_24h_sent", "reminder_24h_sent_at"
	default:
		return fmt.Errorf("appointment repo: unknown reminder type %q", typ)
	}

	q := fmt.Sprintf(`UPDATE appointments SET %s = TRUE, %s = $1, updated_at = $1 WHERE id = $2`, flagCol, atCol)
	return r.execExpectingRow(ctx, "set reminder sent", q, at, id)
}

// SetCallAttempted records that an outbound call was dispatched and moves
// the appointment to AWAITING_CALL.
func (r *AppointmentRepository) SetCallAttempted(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := `UPDATE appointments SET voice_call_attempted = TRUE, voice_call_attempted_at = $1,
		status = $2, status_updated_at = $1, updated_at = $1 WHERE id = $3`
	return r.execExpectingRow(ctx, "set call attempted", q, at, domain.StatusAwaitingCall, id)
}

// MarkNeedsHuman escalates the appointment for human follow-up.
func (r *AppointmentRepository) MarkNeedsHuman(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := `UPDATE appointments SET needs_human_call = TRUE,
		status = $1, status_updated_at = $2, updated_at = $2 WHERE id = $3`
	return r.execExpectingRow(ctx, "mark needs human", q, domain.StatusNeedsContact, at, id)
}

func (r *AppointmentRepository) execExpectingRow(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("appointment repo: %s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("appointment repo: %s rows affected: %w", op, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT id, patient_id, patient_name, patient_phone, doctor_name, specialty,
	appointment_at, status, status_updated_at,
	reminder_72h_sent, reminder_72h_sent_at,
	reminder_48h_sent, reminder_48h_sent_at,
	reminder_24h_sent, reminder_24h_sent_at,
	voice_call_attempted, voice_call_attempted_at,
	needs_human_call, created_at, updated_at`

type appointmentRecord struct {
	ID                   uuid.UUID  `db:"id"`
	PatientID            uuid.UUID  `db:"patient_id"`
	PatientName          string     `db:"patient_name"`
	PatientPhone         string     `db:"patient_phone"`
	DoctorName           string     `db:"doctor_name"`
	Specialty            string     `db:"specialty"`
	AppointmentAt        time.Time  `db:"appointment_at"`
	Status               string     `db:"status"`
	StatusUpdatedAt      time.Time  `db:"status_updated_at"`
	Reminder72hSent      bool       `db:"reminder_72h_sent"`
	Reminder72hSentAt    *time.Time `db:"reminder_72h_sent_at"`
	Reminder48hSent      bool       `db:"reminder_48h_sent"`
	Reminder48hSentAt    *time.Time `db:"reminder_48h_sent_at"`
	Reminder24hSent      bool       `db:"reminder_24h_sent"`
	Reminder24hSentAt    *time.Time `db:"reminder_24h_sent_at"`
	VoiceCallAttempted   bool       `db:"voice_call_attempted"`
	VoiceCallAttemptedAt *time.Time `db:"voice_call_attempted_at"`
	NeedsHumanCall       bool       `db:"needs_human_call"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

func (r appointmentRecord) toDomain() domain.Appointment {
	return domain.Appointment{
		ID:                   r.ID,
		PatientID:            r.PatientID,
		PatientName:          r.PatientName,
		PatientPhone:         r.PatientPhone,
		DoctorName:           r.DoctorName,
		Specialty:            r.Specialty,
		AppointmentAt:        r.AppointmentAt,
		Status:               domain.AppointmentStatus(r.Status),
		StatusUpdatedAt:      r.StatusUpdatedAt,
		Reminder72hSent:      r.Reminder72hSent,
		Reminder72hSentAt:    r.Reminder72hSentAt,
		Reminder48hSent:      r.Reminder48hSent,
		Reminder48hSentAt:    r.Reminder48hSentAt,
		Reminder24hSent:      r.Reminder24hSent,
		Reminder24hSentAt:    r.Reminder24hSentAt,
		VoiceCallAttempted:   r.VoiceCallAttempted,
		VoiceCallAttemptedAt: r.VoiceCallAttemptedAt,
		NeedsHumanCall:       r.NeedsHumanCall,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}
