package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SimulatedGateway accepts every message without contacting a provider.
type SimulatedGateway struct {
	delay time.Duration
}

// NewSimulatedGateway constructs a simulated gateway.
func NewSimulatedGateway(delay time.Duration) *SimulatedGateway {
	return &SimulatedGateway{delay: delay}
}

// Send waits the configured delay and returns a synthetic message id.
func (g *SimulatedGateway) Send(ctx context.Context, phoneNumber, body string) (string, error) {
	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(g.delay):
		}
	}
	return fmt.Sprintf("sim_%s", uuid.NewString()), nil
}
