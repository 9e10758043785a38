package callbridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SimulatedProvider fakes call initiation for environments without a
// configured gateway.
type SimulatedProvider struct {
	delay time.Duration
}

// NewSimulatedProvider constructs a simulated provider.
func NewSimulatedProvider(delay time.Duration) *SimulatedProvider {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &SimulatedProvider{delay: delay}
}

// InitiateCall waits the configured interval and returns a synthetic
// conversation id.
func (p *SimulatedProvider) InitiateCall(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(p.delay):
	}

	return Result{
		ConversationID: fmt.Sprintf("sim_%s", uuid.NewString()),
		Simulated:      true,
	}, nil
}
