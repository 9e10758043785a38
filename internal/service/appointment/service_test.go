package appointment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/repository"
	apperrors "github.com/acme/patient-notify/pkg/errors"
	"github.com/acme/patient-notify/pkg/logger"
)

type fakeRepo struct {
	appointments map[uuid.UUID]*domain.Appointment
	created      int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{appointments: make(map[uuid.UUID]*domain.Appointment)}
}

func (r *fakeRepo) Create(_ context.Context, appt *domain.Appointment) error {
	r.created++
	r.appointments[appt.ID] = appt
	return nil
}

func (r *fakeRepo) Get(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	appt, ok := r.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *appt
	return &copied, nil
}

func (r *fakeRepo) List(_ context.Context, _ repository.AppointmentFilter) ([]*domain.Appointment, int64, error) {
	out := make([]*domain.Appointment, 0, len(r.appointments))
	for _, appt := range r.appointments {
		out = append(out, appt)
	}
	return out, int64(len(out)), nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.AppointmentStatus, at time.Time) error {
	appt, ok := r.appointments[id]
	if !ok {
		return repository.ErrNotFound
	}
	appt.Status = status
	appt.StatusUpdatedAt = at
	return nil
}

func (r *fakeRepo) SetReminderSent(_ context.Context, _ uuid.UUID, _ domain.ReminderType, _ time.Time) error {
	return nil
}

func (r *fakeRepo) SetCallAttempted(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

func (r *fakeRepo) MarkNeedsHuman(_ context.Context, _ uuid.UUID, _ time.Time) error {
	return nil
}

type fakeLogRepo struct {
	responses map[uuid.UUID]string
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{responses: make(map[uuid.UUID]string)}
}

func (r *fakeLogRepo) Create(_ context.Context, _ *domain.ReminderLogEntry) error { return nil }

func (r *fakeLogRepo) MarkResponse(_ context.Context, appointmentID uuid.UUID, _ domain.ReminderType, text string) error {
	r.responses[appointmentID] = text
	return nil
}

func (r *fakeLogRepo) ListByAppointment(_ context.Context, _ uuid.UUID) ([]domain.ReminderLogEntry, error) {
	return nil, nil
}

type fakeScheduler struct {
	scheduled []uuid.UUID
	cancelled []uuid.UUID
}

func (s *fakeScheduler) Schedule(_ context.Context, id uuid.UUID, _ *time.Time) error {
	s.scheduled = append(s.scheduled, id)
	return nil
}

func (s *fakeScheduler) Cancel(_ context.Context, id uuid.UUID) error {
	s.cancelled = append(s.cancelled, id)
	return nil
}

func newTestService(repo *fakeRepo, sched *fakeScheduler) *Service {
	return NewService(repo, newFakeLogRepo(), sched, &logger.Logger{Logger: zap.NewNop()})
}

func validInput() CreateInput {
	return CreateInput{
		PatientID:     uuid.New(),
		PatientName:   "Maria Lopez",
		PatientPhone:  "+34600000001",
		DoctorName:    "Dr. Ruiz",
		Specialty:     "Cardiología",
		AppointmentAt: time.Now().Add(120 * time.Hour),
	}
}

func TestCreateValidationFailures(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeScheduler{})

	cases := []func(*CreateInput){
		func(in *CreateInput) { in.PatientName = "" },
		func(in *CreateInput) { in.PatientPhone = "" },
		func(in *CreateInput) { in.AppointmentAt = time.Time{} },
	}

	for i, mutate := range cases {
		input := validInput()
		mutate(&input)
		if _, err := svc.Create(context.Background(), input); !errors.Is(err, apperrors.ErrValidation) {
			t.Errorf("case %d: expected validation error, got %v", i, err)
		}
	}
}

func TestCreatePersistsAndSchedulesReminders(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if appt.Status != domain.StatusScheduled {
		t.Fatalf("expected new appointment in SCHEDULED, got %s", appt.Status)
	}
	if repo.created != 1 {
		t.Fatalf("expected 1 persisted appointment, got %d", repo.created)
	}
	if len(sched.scheduled) != 1 || sched.scheduled[0] != appt.ID {
		t.Fatalf("expected reminders scheduled for %s, got %v", appt.ID, sched.scheduled)
	}
}

func TestTransitionRejectsForbiddenChange(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Transition(context.Background(), appt.ID, domain.StatusConfirmed); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = svc.Transition(context.Background(), appt.ID, domain.StatusScheduled)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for CONFIRMED -> SCHEDULED, got %v", err)
	}

	stored, _ := repo.Get(context.Background(), appt.ID)
	if stored.Status != domain.StatusConfirmed {
		t.Fatalf("rejected transition must not change stored status, got %s", stored.Status)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakeScheduler{})

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Transition(context.Background(), appt.ID, "PENDING"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}

func TestTransitionMissingAppointment(t *testing.T) {
	svc := newTestService(newFakeRepo(), &fakeScheduler{})

	if _, err := svc.Transition(context.Background(), uuid.New(), domain.StatusConfirmed); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTransitionIntoConfirmedCancelsReminders(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.Transition(context.Background(), appt.ID, domain.StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", updated.Status)
	}
	if len(sched.cancelled) != 1 || sched.cancelled[0] != appt.ID {
		t.Fatalf("expected reminder cancellation for %s, got %v", appt.ID, sched.cancelled)
	}
}

func TestTransitionIntoCancelledCancelsReminders(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Transition(context.Background(), appt.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sched.cancelled) != 1 {
		t.Fatalf("expected 1 cancellation, got %d", len(sched.cancelled))
	}
}

func TestRecordReminderResponseConfirms(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.RecordReminderResponse(context.Background(), appt.ID, domain.Reminder48H, "SÍ, confirmo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusConfirmed {
		t.Fatalf("expected CONFIRMED after affirmative reply, got %s", updated.Status)
	}
	if len(sched.cancelled) != 1 {
		t.Fatalf("expected reminder cancellation after confirmation, got %d", len(sched.cancelled))
	}
}

func TestRecordReminderResponseCancels(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.RecordReminderResponse(context.Background(), appt.ID, domain.Reminder24H, "No puedo asistir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELLED after negative reply, got %s", updated.Status)
	}
}

func TestRecordReminderResponseAmbiguousKeepsStatus(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := svc.RecordReminderResponse(context.Background(), appt.ID, domain.Reminder24H, "quién habla?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Status != domain.StatusScheduled {
		t.Fatalf("expected status untouched for ambiguous reply, got %s", updated.Status)
	}
	if len(sched.cancelled) != 0 {
		t.Fatalf("expected no cancellations, got %d", len(sched.cancelled))
	}
}

func TestTransitionIntoOtherStatusesKeepsReminders(t *testing.T) {
	repo := newFakeRepo()
	sched := &fakeScheduler{}
	svc := newTestService(repo, sched)

	appt, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, status := range []domain.AppointmentStatus{domain.StatusRescheduled, domain.StatusAwaitingCall, domain.StatusNeedsContact} {
		if _, err := svc.Transition(context.Background(), appt.ID, status); err != nil {
			t.Fatalf("unexpected error for %s: %v", status, err)
		}
	}

	if len(sched.cancelled) != 0 {
		t.Fatalf("expected no cancellations, got %v", sched.cancelled)
	}
}
