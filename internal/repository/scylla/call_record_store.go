package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
)

// CallRecordStore persists call records in Scylla. Records are written to
// a primary table keyed by record id and a by-phone index bucketed by
// initiation day.
type CallRecordStore struct {
	session *gocql.Session
}

// NewCallRecordStore creates a new call record store.
func NewCallRecordStore(session *gocql.Session) *CallRecordStore {
	return &CallRecordStore{session: session}
}

// Create inserts a call record.
func (s *CallRecordStore) Create(ctx context.Context, record *domain.CallRecord) error {
	bucket := bucketDate(record.InitiatedAt)

	if err := s.session.Query(`INSERT INTO call_records (record_id, conversation_id, call_sid, phone_number, agent_id, status, patient_id, appointment_id, initiated_at, ended_at, duration_seconds, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(), record.ConversationID, record.CallSID, record.PhoneNumber, record.AgentID,
		string(record.Status), uuidText(record.PatientID), uuidText(record.AppointmentID),
		record.InitiatedAt, record.EndedAt, record.DurationSeconds, record.ErrorMessage,
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: insert call_records: %w", err)
	}

	if err := s.session.Query(`INSERT INTO calls_by_phone (phone_number, bucket, initiated_at, record_id, status)
		VALUES (?, ?, ?, ?, ?)`,
		record.PhoneNumber, bucket, record.InitiatedAt, record.ID.String(), string(record.Status),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: insert calls_by_phone: %w", err)
	}

	return nil
}

// Get retrieves a call record by id.
func (s *CallRecordStore) Get(ctx context.Context, id uuid.UUID) (*domain.CallRecord, error) {
	var (
		conversationID  string
		callSID         string
		phone           string
		agentID         string
		status          string
		patientID       *string
		appointmentID   *string
		initiatedAt     time.Time
		endedAt         *time.Time
		durationSeconds *int
		errorMessage    *string
	)

	err := s.session.Query(`SELECT conversation_id, call_sid, phone_number, agent_id, status, patient_id, appointment_id, initiated_at, ended_at, duration_seconds, error_message
		FROM call_records WHERE record_id = ?`, id.String(),
	).WithContext(ctx).Scan(&conversationID, &callSID, &phone, &agentID, &status, &patientID, &appointmentID, &initiatedAt, &endedAt, &durationSeconds, &errorMessage)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("call record store: get: %w", err)
	}

	record := &domain.CallRecord{
		ID:              id,
		ConversationID:  conversationID,
		CallSID:         callSID,
		PhoneNumber:     phone,
		AgentID:         agentID,
		Status:          domain.CallRecordStatus(status),
		InitiatedAt:     initiatedAt,
		EndedAt:         endedAt,
		DurationSeconds: durationSeconds,
		ErrorMessage:    errorMessage,
	}

	if record.PatientID, err = parseUUIDText(patientID); err != nil {
		return nil, fmt.Errorf("call record store: parse patient_id: %w", err)
	}
	if record.AppointmentID, err = parseUUIDText(appointmentID); err != nil {
		return nil, fmt.Errorf("call record store: parse appointment_id: %w", err)
	}

	return record, nil
}

// SetConversation stores the gateway-assigned conversation and call ids.
func (s *CallRecordStore) SetConversation(ctx context.Context, id uuid.UUID, conversationID, callSID string) error {
	if err := s.session.Query(`UPDATE call_records SET conversation_id = ?, call_sid = ? WHERE record_id = ?`,
		conversationID, callSID, id.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: set conversation: %w", err)
	}
	return nil
}

// MarkCompleted finalizes a completed call.
func (s *CallRecordStore) MarkCompleted(ctx context.Context, id uuid.UUID, conversationID string, durationSeconds int, endedAt time.Time) error {
	if err := s.session.Query(`UPDATE call_records SET conversation_id = ?, status = ?, duration_seconds = ?, ended_at = ? WHERE record_id = ?`,
		conversationID, string(domain.CallStatusCompleted), durationSeconds, endedAt, id.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: mark completed: %w", err)
	}
	return nil
}

// MarkFailed finalizes a failed call with the captured error.
func (s *CallRecordStore) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, endedAt time.Time) error {
	if err := s.session.Query(`UPDATE call_records SET status = ?, error_message = ?, ended_at = ? WHERE record_id = ?`,
		string(domain.CallStatusFailed), errorMessage, endedAt, id.String(),
	).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("call record store: mark failed: %w", err)
	}
	return nil
}

// ListByPhone returns recent call records for a phone number.
func (s *CallRecordStore) ListByPhone(ctx context.Context, phoneNumber string, limit int) ([]domain.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	iter := s.session.Query(`SELECT bucket, initiated_at, record_id, status
		FROM calls_by_phone WHERE phone_number = ? LIMIT ?`, phoneNumber, limit,
	).WithContext(ctx).Iter()

	var (
		bucket      time.Time
		initiatedAt time.Time
		recordIDStr string
		status      string
	)

	records := make([]domain.CallRecord, 0, limit)
	for iter.Scan(&bucket, &initiatedAt, &recordIDStr, &status) {
		recordID, err := uuid.Parse(recordIDStr)
		if err != nil {
			continue
		}
		records = append(records, domain.CallRecord{
			ID:          recordID,
			PhoneNumber: phoneNumber,
			Status:      domain.CallRecordStatus(status),
			InitiatedAt: initiatedAt,
		})
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("call record store: list by phone: %w", err)
	}

	return records, nil
}

func uuidText(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func parseUUIDText(s *string) (*uuid.UUID, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func bucketDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
