package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/config"
	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/jobs"
	"github.com/acme/patient-notify/internal/queue"
	apperrors "github.com/acme/patient-notify/pkg/errors"
	"github.com/acme/patient-notify/pkg/logger"
)

type stubQueue struct{}

func (stubQueue) Enqueue(context.Context, jobs.Key, time.Time) error { return nil }
func (stubQueue) Remove(context.Context, jobs.Key) error             { return nil }
func (stubQueue) PopDue(context.Context, time.Time, int) ([]jobs.Key, error) {
	return nil, nil
}

type fakeAppointments struct {
	appt      *domain.Appointment
	sentTypes []domain.ReminderType
}

func (f *fakeAppointments) Get(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, apperrors.ErrNotFound
	}
	return f.appt, nil
}

func (f *fakeAppointments) SetReminderSent(_ context.Context, _ uuid.UUID, typ domain.ReminderType, _ time.Time) error {
	f.sentTypes = append(f.sentTypes, typ)
	return nil
}

type fakeLogs struct {
	err     error
	entries []*domain.ReminderLogEntry
}

func (f *fakeLogs) Create(_ context.Context, entry *domain.ReminderLogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeGateway struct {
	responses []error
	calls     int
}

func (f *fakeGateway) Send(_ context.Context, _, _ string) (string, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.responses) && f.responses[idx] != nil {
		return "", f.responses[idx]
	}
	return "msg_123", nil
}

type fakeDeadLetters struct {
	msgs []queue.ReminderDeadLetter
}

func (f *fakeDeadLetters) Publish(_ context.Context, msg queue.ReminderDeadLetter) error {
	f.msgs = append(f.msgs, msg)
	return nil
}

func testAppointment() *domain.Appointment {
	return &domain.Appointment{
		ID:            uuid.New(),
		PatientName:   "Maria",
		PatientPhone:  "+34600000001",
		DoctorName:    "Dr. Ruiz",
		Specialty:     "Cardiología",
		AppointmentAt: time.Now().Add(80 * time.Hour),
		Status:        domain.StatusScheduled,
	}
}

func newTestWorker(appts *fakeAppointments, logs *fakeLogs, gw *fakeGateway, dl *fakeDeadLetters) *Worker {
	retry := config.RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
	lg := &logger.Logger{Logger: zap.NewNop()}
	return New(stubQueue{}, appts, logs, gw, dl, retry, config.ReminderConfig{}, lg)
}

func TestProcessJobDeliversReminder(t *testing.T) {
	appt := testAppointment()
	appts := &fakeAppointments{appt: appt}
	logs := &fakeLogs{}
	gw := &fakeGateway{}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder72H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 1 {
		t.Fatalf("expected 1 gateway send, got %d", gw.calls)
	}
	if len(logs.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs.entries))
	}
	if len(appts.sentTypes) != 1 || appts.sentTypes[0] != domain.Reminder72H {
		t.Fatalf("expected 72H flag set, got %v", appts.sentTypes)
	}
	if len(dl.msgs) != 0 {
		t.Fatalf("expected no dead letters, got %d", len(dl.msgs))
	}
}

func TestProcessJobSkipsAlreadyDelivered(t *testing.T) {
	appt := testAppointment()
	appts := &fakeAppointments{appt: appt}
	logs := &fakeLogs{err: apperrors.ErrConflict}
	gw := &fakeGateway{}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder24H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 0 {
		t.Fatalf("expected no gateway send for a duplicate job, got %d", gw.calls)
	}
	if len(appts.sentTypes) != 0 {
		t.Fatalf("expected no flag update, got %v", appts.sentTypes)
	}
}

func TestProcessJobSkipsResolvedAppointment(t *testing.T) {
	for _, status := range []domain.AppointmentStatus{domain.StatusConfirmed, domain.StatusCancelled} {
		appt := testAppointment()
		appt.Status = status
		appts := &fakeAppointments{appt: appt}
		logs := &fakeLogs{}
		gw := &fakeGateway{}
		dl := &fakeDeadLetters{}
		w := newTestWorker(appts, logs, gw, dl)

		key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder48H}
		if err := w.ProcessJob(context.Background(), key); err != nil {
			t.Fatalf("unexpected error for %s: %v", status, err)
		}
		if gw.calls != 0 || len(logs.entries) != 0 {
			t.Fatalf("expected no delivery for %s appointment", status)
		}
	}
}

func TestProcessJobRetriesTransientFailures(t *testing.T) {
	appt := testAppointment()
	appts := &fakeAppointments{appt: appt}
	logs := &fakeLogs{}
	gw := &fakeGateway{responses: []error{
		&apperrors.GatewayError{StatusCode: 503, Message: "unavailable"},
		nil,
	}}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder72H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 2 {
		t.Fatalf("expected 2 gateway attempts, got %d", gw.calls)
	}
	if len(appts.sentTypes) != 1 {
		t.Fatalf("expected flag update after retry, got %v", appts.sentTypes)
	}
	if len(dl.msgs) != 0 {
		t.Fatalf("expected no dead letters, got %d", len(dl.msgs))
	}
}

func TestProcessJobDoesNotRetryPermanentFailures(t *testing.T) {
	appt := testAppointment()
	appts := &fakeAppointments{appt: appt}
	logs := &fakeLogs{}
	gw := &fakeGateway{responses: []error{
		&apperrors.GatewayError{StatusCode: 400, Message: "invalid number"},
		nil, nil,
	}}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder72H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent failure, got %d", gw.calls)
	}
	if len(dl.msgs) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dl.msgs))
	}
}

func TestProcessJobDeadLettersAfterExhaustedRetries(t *testing.T) {
	appt := testAppointment()
	appts := &fakeAppointments{appt: appt}
	logs := &fakeLogs{}
	transient := &apperrors.GatewayError{StatusCode: 503, Message: "unavailable"}
	gw := &fakeGateway{responses: []error{transient, transient, transient}}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: appt.ID, Type: domain.Reminder48H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", gw.calls)
	}
	if len(dl.msgs) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dl.msgs))
	}
	msg := dl.msgs[0]
	if msg.AppointmentID != appt.ID || msg.ReminderType != domain.Reminder48H || msg.Attempts != 3 {
		t.Fatalf("unexpected dead letter contents: %+v", msg)
	}
	if len(appts.sentTypes) != 0 {
		t.Fatalf("expected no flag update after exhausted retries, got %v", appts.sentTypes)
	}
}

func TestProcessJobDeadLettersMissingAppointment(t *testing.T) {
	appts := &fakeAppointments{}
	logs := &fakeLogs{}
	gw := &fakeGateway{}
	dl := &fakeDeadLetters{}
	w := newTestWorker(appts, logs, gw, dl)

	key := jobs.Key{AppointmentID: uuid.New(), Type: domain.Reminder24H}
	if err := w.ProcessJob(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gw.calls != 0 {
		t.Fatalf("expected no gateway send, got %d", gw.calls)
	}
	if len(dl.msgs) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dl.msgs))
	}
	if dl.msgs[0].Attempts != 0 {
		t.Fatalf("expected 0 attempts in dead letter, got %d", dl.msgs[0].Attempts)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	w := newTestWorker(&fakeAppointments{}, &fakeLogs{}, &fakeGateway{}, &fakeDeadLetters{})
	w.retry = config.RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	if got := w.backoff(1); got != time.Second {
		t.Fatalf("attempt 1: got %v, want %v", got, time.Second)
	}
	if got := w.backoff(2); got != 2*time.Second {
		t.Fatalf("attempt 2: got %v, want %v", got, 2*time.Second)
	}
	if got := w.backoff(4); got != 5*time.Second {
		t.Fatalf("attempt 4 should cap at max delay: got %v", got)
	}
}
