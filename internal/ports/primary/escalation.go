package primary

import (
	"context"
	"time"
)

// EscalationService defines the primary port for the escalation sweeper.
type EscalationService interface {
	// Sweep runs one escalation pass over active tasks near or past their deadline.
	Sweep(ctx context.Context) (*SweepResult, error)

	// Run sweeps on every interval tick until ctx is cancelled.
	Run(ctx context.Context, interval time.Duration) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	StartedAt time.Time
	Scanned   int
	Escalated int
	Skipped   int // already escalated at tier, or lost a race to another sweeper
	Failed    int
}
