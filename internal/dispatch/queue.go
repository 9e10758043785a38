package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/acme/patient-notify/internal/callbridge"
	"github.com/acme/patient-notify/internal/domain"
	"github.com/acme/patient-notify/pkg/logger"
)

const (
	minConcurrency = 1
	maxConcurrency = 10

	simulatedCallSeconds = 30
)

// callRecordStore is the slice of the call record store the queue needs.
type callRecordStore interface {
	Create(ctx context.Context, record *domain.CallRecord) error
	SetConversation(ctx context.Context, id uuid.UUID, conversationID, callSID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, conversationID string, durationSeconds int, endedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string, endedAt time.Time) error
}

// appointmentFlags updates call-attempt state on appointments.
type appointmentFlags interface {
	SetCallAttempted(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkNeedsHuman(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Queue is an in-process FIFO of call requests drained by a single
// bounded-concurrency loop. One drain loop runs at a time; it is started
// by Enqueue and stops itself once nothing is pending or in flight.
type Queue struct {
	provider     callbridge.Provider
	records      callRecordStore
	appointments appointmentFlags
	logger       *logger.Logger
	agentID      string
	simulated    bool

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	items       []*Item
	concurrency int
	draining    bool

	// wake is signalled on enqueue and on slot release so the drain
	// loop does not have to busy-poll; the poll interval is only a
	// fallback.
	wake         chan struct{}
	pollInterval time.Duration

	wg sync.WaitGroup
}

// NewQueue constructs a call dispatch queue.
func NewQueue(
	provider callbridge.Provider,
	records callRecordStore,
	appointments appointmentFlags,
	concurrency int,
	pollInterval time.Duration,
	agentID string,
	simulated bool,
	lg *logger.Logger,
) *Queue {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		provider:     provider,
		records:      records,
		appointments: appointments,
		logger:       lg,
		agentID:      agentID,
		simulated:    simulated,
		ctx:          ctx,
		cancel:       cancel,
		concurrency:  clampConcurrency(concurrency),
		wake:         make(chan struct{}, 1),
		pollInterval: pollInterval,
	}
}

// Enqueue adds the requests as PENDING items and starts the drain loop
// if it is not already running. An empty input is a no-op: it returns 0
// and does not start the loop.
func (q *Queue) Enqueue(inputs []EnqueueInput) int {
	if len(inputs) == 0 {
		return 0
	}

	q.mu.Lock()
	for _, in := range inputs {
		q.items = append(q.items, &Item{
			ID:              uuid.New(),
			PhoneNumber:     in.PhoneNumber,
			PatientID:       in.PatientID,
			AppointmentID:   in.AppointmentID,
			PatientName:     in.PatientName,
			AppointmentDate: in.AppointmentDate,
			DoctorName:      in.DoctorName,
			Specialty:       in.Specialty,
			Status:          ItemPending,
		})
	}
	startLoop := !q.draining
	if startLoop {
		q.draining = true
	}
	q.mu.Unlock()

	if startLoop {
		q.wg.Add(1)
		go q.drain()
	} else {
		q.signal()
	}

	return len(inputs)
}

// SetConcurrencyLimit adjusts the bound on simultaneous dispatches,
// clamped into [1,10].
func (q *Queue) SetConcurrencyLimit(n int) {
	q.mu.Lock()
	q.concurrency = clampConcurrency(n)
	q.mu.Unlock()
	q.signal()
}

// ClearPending removes PENDING items only; in-flight and terminal items
// are untouched.
func (q *Queue) ClearPending() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.items[:0]
	for _, item := range q.items {
		if item.Status != ItemPending {
			kept = append(kept, item)
		}
	}
	q.items = kept
}

// Snapshot returns counts by status plus a copy of every item.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := Snapshot{
		Total:     len(q.items),
		Simulated: q.simulated,
		Items:     make([]Item, 0, len(q.items)),
	}
	for _, item := range q.items {
		switch item.Status {
		case ItemPending:
			snap.Pending++
		case ItemProcessing:
			snap.Processing++
		case ItemCompleted:
			snap.Completed++
		case ItemFailed:
			snap.Failed++
		}
		snap.Items = append(snap.Items, *item)
	}
	return snap
}

// Close stops the drain loop and waits for in-flight dispatches.
func (q *Queue) Close() {
	q.cancel()
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		processing := 0
		for _, item := range q.items {
			if item.Status == ItemProcessing {
				processing++
			}
		}

		available := q.concurrency - processing
		var batch []*Item
		if available > 0 {
			for _, item := range q.items {
				if len(batch) == available {
					break
				}
				if item.Status == ItemPending {
					item.Status = ItemProcessing
					item.Attempts++
					batch = append(batch, item)
				}
			}
		}

		pending := 0
		for _, item := range q.items {
			if item.Status == ItemPending {
				pending++
			}
		}

		if len(batch) == 0 && processing == 0 && pending == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		for _, item := range batch {
			q.wg.Add(1)
			go q.dispatch(item)
		}
		if len(batch) > 0 {
			continue
		}

		// Saturated, or waiting on in-flight dispatches: block until a
		// slot frees or new work arrives.
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		case <-time.After(q.pollInterval):
		}
	}
}

// dispatch processes one item. Failures are isolated: the item is marked
// FAILED, its appointment is escalated, and siblings are unaffected.
func (q *Queue) dispatch(item *Item) {
	defer q.wg.Done()
	defer q.signal()

	tracer := otel.Tracer("notify.calldispatch")
	ctx, span := tracer.Start(q.ctx, "call.dispatch", trace.WithAttributes(
		attribute.String("item.id", item.ID.String()),
		attribute.String("phone", item.PhoneNumber),
	))
	defer span.End()

	if err := q.dispatchOnce(ctx, item); err != nil {
		span.RecordError(err)
		q.fail(ctx, item, err)
		return
	}

	q.mu.Lock()
	item.Status = ItemCompleted
	q.mu.Unlock()
}

func (q *Queue) dispatchOnce(ctx context.Context, item *Item) error {
	now := time.Now().UTC()
	record := &domain.CallRecord{
		ID:             uuid.New(),
		ConversationID: fmt.Sprintf("pending_%s", item.ID),
		PhoneNumber:    item.PhoneNumber,
		AgentID:        q.agentID,
		Status:         domain.CallStatusInitiated,
		PatientID:      item.PatientID,
		AppointmentID:  item.AppointmentID,
		InitiatedAt:    now,
	}
	if err := q.records.Create(ctx, record); err != nil {
		return err
	}

	req := callbridge.Request{
		PhoneNumber:     item.PhoneNumber,
		PatientName:     item.PatientName,
		AppointmentDate: item.AppointmentDate,
		DoctorName:      item.DoctorName,
		Specialty:       item.Specialty,
	}
	if item.PatientID != nil {
		req.PatientID = item.PatientID.String()
	}

	result, err := q.provider.InitiateCall(ctx, req)
	if err != nil {
		endedAt := time.Now().UTC()
		if markErr := q.records.MarkFailed(ctx, record.ID, err.Error(), endedAt); markErr != nil {
			q.logger.Error("call dispatch: mark record failed", zap.Error(markErr))
		}
		return err
	}

	if result.Simulated {
		// Simulated calls complete inline with a synthetic duration.
		if err := q.records.MarkCompleted(ctx, record.ID, result.ConversationID, simulatedCallSeconds, time.Now().UTC()); err != nil {
			return err
		}
	} else {
		// Real calls stay INITIATED; lifecycle updates arrive from the
		// gateway's webhooks.
		if err := q.records.SetConversation(ctx, record.ID, result.ConversationID, result.CallSID); err != nil {
			return err
		}
	}

	q.mu.Lock()
	item.ConversationID = result.ConversationID
	q.mu.Unlock()

	if item.AppointmentID != nil {
		if err := q.appointments.SetCallAttempted(ctx, *item.AppointmentID, time.Now().UTC()); err != nil {
			return err
		}
	}

	q.logger.Info("call dispatched",
		zap.String("item_id", item.ID.String()),
		zap.String("conversation_id", result.ConversationID),
	)
	return nil
}

func (q *Queue) fail(ctx context.Context, item *Item, cause error) {
	q.mu.Lock()
	item.Status = ItemFailed
	item.Error = cause.Error()
	q.mu.Unlock()

	q.logger.Error("call dispatch failed",
		zap.String("item_id", item.ID.String()),
		zap.String("phone", item.PhoneNumber),
		zap.Error(cause),
	)

	if item.AppointmentID != nil {
		if err := q.appointments.MarkNeedsHuman(ctx, *item.AppointmentID, time.Now().UTC()); err != nil {
			q.logger.Error("call dispatch: mark needs human", zap.Error(err))
		}
	}
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func clampConcurrency(n int) int {
	if n < minConcurrency {
		return minConcurrency
	}
	if n > maxConcurrency {
		return maxConcurrency
	}
	return n
}
