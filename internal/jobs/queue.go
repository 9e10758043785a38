package jobs

import (
	"context"
	"time"
)

// DelayedQueue is the scheduling substrate for reminder jobs. Enqueueing
// an existing key replaces its fire time rather than adding a duplicate;
// removing a missing key is a no-op. Delivery is at-least-once: a popped
// job that is not fully processed may be re-enqueued by an operator or a
// redeliver sweep, so handlers must tolerate duplicate execution.
type DelayedQueue interface {
	Enqueue(ctx context.Context, key Key, fireAt time.Time) error
	Remove(ctx context.Context, key Key) error
	PopDue(ctx context.Context, now time.Time, limit int) ([]Key, error)
}
