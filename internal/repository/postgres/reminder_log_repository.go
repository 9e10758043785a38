package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// ReminderLogRepository implements repository.ReminderLogRepository using
// PostgreSQL. The reminder_logs table carries a unique index on
// (appointment_id, reminder_type).
type ReminderLogRepository struct {
	db *sqlx.DB
}

// NewReminderLogRepository constructs a new repository.
func NewReminderLogRepository(db *sqlx.DB) *ReminderLogRepository {
	return &ReminderLogRepository{db: db}
}

// Create inserts a log entry, returning ErrConflict when an entry for the
// (appointment, type) pair already exists.
func (r *ReminderLogRepository) Create(ctx context.Context, entry *domain.ReminderLogEntry) error {
	q := `INSERT INTO reminder_logs (id, appointment_id, reminder_type, sent_at, response_received, response_text)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := r.db.ExecContext(ctx, q,
		entry.ID, entry.AppointmentID, entry.Type, entry.SentAt, entry.ResponseReceived, entry.ResponseText,
	); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("reminder log repo: insert: %w", err)
	}

	return nil
}

// MarkResponse records the patient's reply to a delivered reminder.
func (r *ReminderLogRepository) MarkResponse(ctx context.Context, appointmentID uuid.UUID, typ domain.ReminderType, text string) error {
	q := `UPDATE reminder_logs SET response_received = TRUE, response_text = $1
		WHERE appointment_id = $2 AND reminder_type = $3`

	res, err := r.db.ExecContext(ctx, q, text, appointmentID, typ)
	if err != nil {
		return fmt.Errorf("reminder log repo: mark response: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reminder log repo: rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListByAppointment returns all log entries for an appointment.
func (r *ReminderLogRepository) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]domain.ReminderLogEntry, error) {
	q := `SELECT id, appointment_id, reminder_type, sent_at, response_received, response_text
		FROM reminder_logs WHERE appointment_id = $1 ORDER BY sent_at ASC`

	rows, err := r.db.QueryxContext(ctx, q, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("reminder log repo: list: %w", err)
	}
	defer rows.Close()

	var entries []domain.ReminderLogEntry
	for rows.Next() {
		var rec reminderLogRecord
		if err := rows.StructScan(&rec); err != nil {
			return nil, fmt.Errorf("reminder log repo: scan: %w", err)
		}
		entries = append(entries, domain.ReminderLogEntry{
			ID:               rec.ID,
			AppointmentID:    rec.AppointmentID,
			Type:             domain.ReminderType(rec.Type),
			SentAt:           rec.SentAt,
			ResponseReceived: rec.ResponseReceived,
			ResponseText:     rec.ResponseText,
		})
	}

	return entries, rows.Err()
}

type reminderLogRecord struct {
	ID               uuid.UUID `db:"id"`
	AppointmentID    uuid.UUID `db:"appointment_id"`
	Type             string    `db:"reminder_type"`
	SentAt           time.Time `db:"sent_at"`
	ResponseReceived bool      `db:"response_received"`
	ResponseText     *string   `db:"response_text"`
}
