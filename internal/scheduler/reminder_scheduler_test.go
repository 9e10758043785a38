package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/internal/jobs"
	apperrors "github.com/acme/patient-notify/pkg/errors"
	"github.com/acme/patient-notify/pkg/logger"
)

type fakeQueue struct {
	jobs map[jobs.Key]time.Time
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: make(map[jobs.Key]time.Time)}
}

func (q *fakeQueue) Enqueue(_ context.Context, key jobs.Key, fireAt time.Time) error {
	q.jobs[key] = fireAt
	return nil
}

func (q *fakeQueue) Remove(_ context.Context, key jobs.Key) error {
	delete(q.jobs, key)
	return nil
}

func (q *fakeQueue) PopDue(_ context.Context, now time.Time, limit int) ([]jobs.Key, error) {
	var due []jobs.Key
	for key, fireAt := range q.jobs {
		if len(due) == limit {
			break
		}
		if !fireAt.After(now) {
			due = append(due, key)
			delete(q.jobs, key)
		}
	}
	return due, nil
}

type fakeGetter struct {
	appointments map[uuid.UUID]*domain.Appointment
}

func (g *fakeGetter) Get(_ context.Context, id uuid.UUID) (*domain.Appointment, error) {
	appt, ok := g.appointments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return appt, nil
}

func testLogger() *logger.Logger {
	return &logger.Logger{Logger: zap.NewNop()}
}

func newTestScheduler(q *fakeQueue, getter *fakeGetter, now time.Time) *ReminderScheduler {
	s := New(q, getter, testLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestScheduleEnqueuesAllFutureOffsets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	appointmentAt := now.Add(100 * time.Hour)
	id := uuid.New()

	q := newFakeQueue()
	s := newTestScheduler(q, &fakeGetter{}, now)

	if err := s.Schedule(context.Background(), id, &appointmentAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(q.jobs))
	}

	expected := map[domain.ReminderType]time.Duration{
		domain.Reminder72H: 28 * time.Hour,
		domain.Reminder48H: 52 * time.Hour,
		domain.Reminder24H: 76 * time.Hour,
	}
	for typ, delay := range expected {
		fireAt, ok := q.jobs[jobs.Key{AppointmentID: id, Type: typ}]
		if !ok {
			t.Fatalf("missing job for %s", typ)
		}
		if got := fireAt.Sub(now); got != delay {
			t.Fatalf("delay for %s: got %v, want %v", typ, got, delay)
		}
	}
}

func TestScheduleSkipsElapsedOffsets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeGetter{}, now)

	// 50h out: the 72h offset has already passed.
	appointmentAt := now.Add(50 * time.Hour)
	if err := s.Schedule(context.Background(), id, &appointmentAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(q.jobs))
	}
	if _, ok := q.jobs[jobs.Key{AppointmentID: id, Type: domain.Reminder72H}]; ok {
		t.Fatal("expected no 72H job for an appointment 50h out")
	}
}

func TestScheduleImminentAppointmentEnqueuesNothing(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeGetter{}, now)

	appointmentAt := now.Add(10 * time.Hour)
	if err := s.Schedule(context.Background(), uuid.New(), &appointmentAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("expected no jobs, got %d", len(q.jobs))
	}
}

func TestScheduleIsIdempotentPerKey(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeGetter{}, now)

	first := now.Add(100 * time.Hour)
	if err := s.Schedule(context.Background(), id, &first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Rescheduling replaces the jobs rather than duplicating them.
	second := now.Add(120 * time.Hour)
	if err := s.Schedule(context.Background(), id, &second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(q.jobs) != 3 {
		t.Fatalf("expected 3 jobs after reschedule, got %d", len(q.jobs))
	}
	fireAt := q.jobs[jobs.Key{AppointmentID: id, Type: domain.Reminder72H}]
	if got := fireAt.Sub(now); got != 48*time.Hour {
		t.Fatalf("72H job not replaced: delay %v, want %v", got, 48*time.Hour)
	}
}

func TestScheduleLoadsAppointmentWhenTimeOmitted(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	getter := &fakeGetter{appointments: map[uuid.UUID]*domain.Appointment{
		id: {ID: id, AppointmentAt: now.Add(100 * time.Hour)},
	}}

	q := newFakeQueue()
	s := newTestScheduler(q, getter, now)

	if err := s.Schedule(context.Background(), id, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.jobs) != 3 {
		t.Fatalf("expected 3 jobs, got %d", len(q.jobs))
	}

	if err := s.Schedule(context.Background(), uuid.New(), nil); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown appointment, got %v", err)
	}
}

func TestCancelRemovesAllJobsAndIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	id := uuid.New()
	q := newFakeQueue()
	s := newTestScheduler(q, &fakeGetter{}, now)

	appointmentAt := now.Add(100 * time.Hour)
	if err := s.Schedule(context.Background(), id, &appointmentAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Cancel(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(q.jobs) != 0 {
		t.Fatalf("expected no jobs after cancel, got %d", len(q.jobs))
	}

	if err := s.Cancel(context.Background(), id); err != nil {
		t.Fatalf("second cancel should be a no-op, got %v", err)
	}
}
